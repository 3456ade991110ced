// Package crontab schedules the background reconciliation jobs.
package crontab

import (
	"context"
	"fmt"
	"time"

	"github.com/mileusna/crontab"

	"chathistory-server/internal/config"
	"chathistory-server/internal/domain/conversation"
	"chathistory-server/internal/infrastructure/logger"
	"chathistory-server/internal/infrastructure/metrics"
	"chathistory-server/internal/infrastructure/observability"
	"chathistory-server/internal/utils/platformerrors"
)

const (
	DefaultReconcileInterval = 15               // in minutes
	CronJobTimeout           = 10 * time.Minute // timeout for each job execution
)

type Crontab struct {
	ctab                *crontab.Crontab
	conversationService *conversation.ConversationService
}

func NewCrontab(conversationService *conversation.ConversationService) *Crontab {
	return &Crontab{
		ctab:                crontab.New(),
		conversationService: conversationService,
	}
}

// Run schedules the token count reconciliation job and blocks until ctx is
// cancelled.
func (c *Crontab) Run(ctx context.Context) error {
	log := logger.GetLogger()

	// Repair anything left over from a previous crash before serving.
	c.reconcileTokenCounts(ctx)

	cfg := config.GetGlobal()
	if cfg != nil && cfg.TokenReconcileEnabled {
		interval := cfg.TokenReconcileIntervalMinutes
		if interval <= 0 {
			interval = DefaultReconcileInterval
		}

		cronExpr := fmt.Sprintf("*/%d * * * *", interval)
		if err := c.ctab.AddJob(cronExpr, func() {
			jobCtx, cancel := context.WithTimeout(context.Background(), CronJobTimeout)
			defer cancel()
			c.reconcileTokenCounts(jobCtx)
		}); err != nil {
			return platformerrors.AsError(ctx, platformerrors.LayerInfrastructure, err, "failed to add token reconcile job")
		}
		log.Info().Msgf("Token count reconciliation scheduled: every %d minute(s)", interval)
	}

	<-ctx.Done()
	c.ctab.Shutdown()
	return nil
}

func (c *Crontab) reconcileTokenCounts(ctx context.Context) {
	log := logger.GetLogger()

	ctx, span := observability.StartSpan(ctx, "crontab", "reconcile_token_counts")
	defer span.End()

	repaired, err := c.conversationService.ReconcileTokenCounts(ctx)
	if err != nil {
		observability.RecordError(ctx, err)
		log.Error().Err(err).Str("trace_id", observability.GetTraceID(ctx)).Msg("Token count reconciliation failed")
		return
	}
	if repaired > 0 {
		metrics.TokenRepairsTotal.Add(float64(repaired))
		log.Warn().Int("repaired", repaired).Msg("Repaired drifted conversation token counts")
	}
}
