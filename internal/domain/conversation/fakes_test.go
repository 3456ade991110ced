package conversation

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"chathistory-server/internal/domain/query"
	"chathistory-server/internal/utils/platformerrors"
)

// memoryStore backs the in-memory repository fakes used by the service
// tests. It mimics the storage guarantees the services rely on: unique
// public IDs, atomic token accumulation, and ordered message streams.
type memoryStore struct {
	mu         sync.Mutex
	convs      map[uint]*Conversation
	msgs       map[uint]*Message
	nextConvID uint
	nextMsgID  uint
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		convs: make(map[uint]*Conversation),
		msgs:  make(map[uint]*Message),
	}
}

type memoryConversationRepo struct {
	store *memoryStore
	// conflictsLeft forces this many Create calls to fail with a conflict,
	// simulating public ID collisions.
	conflictsLeft int
}

var _ ConversationRepository = (*memoryConversationRepo)(nil)

func conflictErr(ctx context.Context) error {
	return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeConflict, "duplicate public ID", nil)
}

func (r *memoryConversationRepo) Create(ctx context.Context, conv *Conversation) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if r.conflictsLeft > 0 {
		r.conflictsLeft--
		return conflictErr(ctx)
	}
	for _, existing := range r.store.convs {
		if existing.PublicID == conv.PublicID {
			return conflictErr(ctx)
		}
	}

	r.store.nextConvID++
	conv.ID = r.store.nextConvID
	clone := *conv
	r.store.convs[conv.ID] = &clone
	return nil
}

func (r *memoryConversationRepo) FindByFilter(ctx context.Context, filter ConversationFilter, pagination *query.Pagination, s *query.Sort) ([]*Conversation, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	matched := r.filterLocked(filter)

	srt := query.DefaultSort()
	if s != nil {
		srt = *s
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if srt.Direction == query.SortDescending {
			a, b = b, a
		}
		switch srt.Field {
		case query.SortFieldCreatedAt:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
		case query.SortFieldTitle:
			if a.Title != b.Title {
				return a.Title < b.Title
			}
		default:
			if !a.UpdatedAt.Equal(b.UpdatedAt) {
				return a.UpdatedAt.Before(b.UpdatedAt)
			}
		}
		return a.ID < b.ID
	})

	if pagination != nil {
		start := pagination.Offset()
		if start > len(matched) {
			start = len(matched)
		}
		end := start + pagination.Size
		if end > len(matched) {
			end = len(matched)
		}
		matched = matched[start:end]
	}

	out := make([]*Conversation, len(matched))
	for i, c := range matched {
		clone := *c
		out[i] = &clone
	}
	return out, nil
}

func (r *memoryConversationRepo) filterLocked(filter ConversationFilter) []*Conversation {
	var matched []*Conversation
	for _, c := range r.store.convs {
		if filter.ID != nil && c.ID != *filter.ID {
			continue
		}
		if filter.PublicID != nil && c.PublicID != *filter.PublicID {
			continue
		}
		if filter.UserID != nil && c.UserID != *filter.UserID {
			continue
		}
		if filter.Status != nil && c.Status != *filter.Status {
			continue
		}
		if filter.TitleKeyword != nil &&
			!strings.Contains(strings.ToLower(c.Title), strings.ToLower(*filter.TitleKeyword)) {
			continue
		}
		matched = append(matched, c)
	}
	return matched
}

func (r *memoryConversationRepo) Count(ctx context.Context, filter ConversationFilter) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return int64(len(r.filterLocked(filter))), nil
}

func (r *memoryConversationRepo) FindByID(ctx context.Context, id uint) (*Conversation, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if c, ok := r.store.convs[id]; ok {
		clone := *c
		return &clone, nil
	}
	return nil, nil
}

func (r *memoryConversationRepo) FindByPublicID(ctx context.Context, publicID string) (*Conversation, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, c := range r.store.convs {
		if c.PublicID == publicID {
			clone := *c
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *memoryConversationRepo) FindByOwnerAndPublicID(ctx context.Context, userID uint, publicID string) (*Conversation, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, c := range r.store.convs {
		if c.PublicID == publicID && c.UserID == userID {
			clone := *c
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *memoryConversationRepo) Update(ctx context.Context, conv *Conversation) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	clone := *conv
	r.store.convs[conv.ID] = &clone
	return nil
}

func (r *memoryConversationRepo) UpdateSummary(ctx context.Context, id uint, summary string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if c, ok := r.store.convs[id]; ok {
		c.Summary = &summary
		c.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (r *memoryConversationRepo) Archive(ctx context.Context, id uint, archivedAt time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if c, ok := r.store.convs[id]; ok {
		c.Status = ConversationStatusArchived
		c.ArchivedAt = &archivedAt
		c.UpdatedAt = archivedAt
	}
	return nil
}

func (r *memoryConversationRepo) Delete(ctx context.Context, id uint) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.convs, id)
	return nil
}

func (r *memoryConversationRepo) AccumulateTokens(ctx context.Context, id uint, delta int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if c, ok := r.store.convs[id]; ok {
		c.TokenCount += delta
		c.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (r *memoryConversationRepo) RepairTokenCount(ctx context.Context, id uint) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if c, ok := r.store.convs[id]; ok {
		var sum int64
		for _, m := range r.store.msgs {
			if m.ConversationID == id && m.TotalTokens != nil {
				sum += int64(*m.TotalTokens)
			}
		}
		c.TokenCount = sum
	}
	return nil
}

func (r *memoryConversationRepo) FindTokenDrift(ctx context.Context) ([]TokenDrift, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var drifts []TokenDrift
	for id, c := range r.store.convs {
		var sum int64
		for _, m := range r.store.msgs {
			if m.ConversationID == id && m.TotalTokens != nil {
				sum += int64(*m.TotalTokens)
			}
		}
		if sum != c.TokenCount {
			drifts = append(drifts, TokenDrift{ConversationID: id, TokenCount: c.TokenCount, MessageTokens: sum})
		}
	}
	return drifts, nil
}

type memoryMessageRepo struct {
	store         *memoryStore
	conflictsLeft int
}

var _ MessageRepository = (*memoryMessageRepo)(nil)

func (r *memoryMessageRepo) Create(ctx context.Context, msg *Message) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if r.conflictsLeft > 0 {
		r.conflictsLeft--
		return conflictErr(ctx)
	}
	for _, existing := range r.store.msgs {
		if existing.PublicID == msg.PublicID {
			return conflictErr(ctx)
		}
	}

	r.store.nextMsgID++
	msg.ID = r.store.nextMsgID
	clone := *msg
	r.store.msgs[msg.ID] = &clone
	return nil
}

func (r *memoryMessageRepo) orderedLocked(conversationID uint) []*Message {
	var msgs []*Message
	for _, m := range r.store.msgs {
		if m.ConversationID == conversationID {
			msgs = append(msgs, m)
		}
	}
	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].ID < msgs[j].ID
		}
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	return msgs
}

func cloneMessages(msgs []*Message) []*Message {
	out := make([]*Message, len(msgs))
	for i, m := range msgs {
		clone := *m
		out[i] = &clone
	}
	return out
}

func (r *memoryMessageRepo) FindByConversation(ctx context.Context, conversationID uint) ([]*Message, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return cloneMessages(r.orderedLocked(conversationID)), nil
}

func (r *memoryMessageRepo) FindByConversationPaged(ctx context.Context, conversationID uint, pagination query.Pagination) ([]*Message, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	msgs := r.orderedLocked(conversationID)
	start := pagination.Offset()
	if start > len(msgs) {
		start = len(msgs)
	}
	end := start + pagination.Size
	if end > len(msgs) {
		end = len(msgs)
	}
	return cloneMessages(msgs[start:end]), nil
}

func (r *memoryMessageRepo) FindRecent(ctx context.Context, conversationID uint, limit int) ([]*Message, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	msgs := r.orderedLocked(conversationID)
	// Newest first.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	if limit < len(msgs) {
		msgs = msgs[:limit]
	}
	return cloneMessages(msgs), nil
}

func (r *memoryMessageRepo) FindLast(ctx context.Context, conversationID uint) (*Message, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	msgs := r.orderedLocked(conversationID)
	if len(msgs) == 0 {
		return nil, nil
	}
	clone := *msgs[len(msgs)-1]
	return &clone, nil
}

func (r *memoryMessageRepo) FindByPublicID(ctx context.Context, conversationID uint, publicID string) (*Message, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, m := range r.store.msgs {
		if m.ConversationID == conversationID && m.PublicID == publicID {
			clone := *m
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *memoryMessageRepo) FindByRole(ctx context.Context, conversationID uint, role MessageRole) ([]*Message, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var out []*Message
	for _, m := range r.orderedLocked(conversationID) {
		if m.Role == role {
			clone := *m
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *memoryMessageRepo) FindByParent(ctx context.Context, conversationID uint, parentID uint) ([]*Message, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var out []*Message
	for _, m := range r.orderedLocked(conversationID) {
		if m.ParentMessageID != nil && *m.ParentMessageID == parentID {
			clone := *m
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *memoryMessageRepo) SearchContent(ctx context.Context, conversationID uint, keyword string) ([]*Message, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var out []*Message
	for _, m := range r.orderedLocked(conversationID) {
		if strings.Contains(strings.ToLower(m.Content), strings.ToLower(keyword)) {
			clone := *m
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *memoryMessageRepo) FindSince(ctx context.Context, conversationID uint, since time.Time) ([]*Message, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var out []*Message
	for _, m := range r.orderedLocked(conversationID) {
		if m.CreatedAt.After(since) {
			clone := *m
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *memoryMessageRepo) Delete(ctx context.Context, id uint) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.msgs, id)
	return nil
}

func (r *memoryMessageRepo) DeleteByConversation(ctx context.Context, conversationID uint) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var deleted int64
	for id, m := range r.store.msgs {
		if m.ConversationID == conversationID {
			delete(r.store.msgs, id)
			deleted++
		}
	}
	return deleted, nil
}

func (r *memoryMessageRepo) Count(ctx context.Context, conversationID uint) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var count int64
	for _, m := range r.store.msgs {
		if m.ConversationID == conversationID {
			count++
		}
	}
	return count, nil
}

func (r *memoryMessageRepo) CountByRole(ctx context.Context, conversationID uint, role MessageRole) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var count int64
	for _, m := range r.store.msgs {
		if m.ConversationID == conversationID && m.Role == role {
			count++
		}
	}
	return count, nil
}

func (r *memoryMessageRepo) SumTotalTokens(ctx context.Context, conversationID uint) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var sum int64
	for _, m := range r.store.msgs {
		if m.ConversationID == conversationID && m.TotalTokens != nil {
			sum += int64(*m.TotalTokens)
		}
	}
	return sum, nil
}

func (r *memoryMessageRepo) AverageLatency(ctx context.Context, conversationID uint, role MessageRole) (float64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var sum int64
	var count int64
	for _, m := range r.store.msgs {
		if m.ConversationID == conversationID && m.Role == role && m.LatencyMs != nil {
			sum += *m.LatencyMs
			count++
		}
	}
	if count == 0 {
		return 0, nil
	}
	return float64(sum) / float64(count), nil
}

// passthroughTx runs the function directly; the fakes are atomic per call.
type passthroughTx struct{}

func (passthroughTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fixture struct {
	store        *memoryStore
	convRepo     *memoryConversationRepo
	msgRepo      *memoryMessageRepo
	conversation *ConversationService
	messages     *MessageService
}

func newFixture() *fixture {
	store := newMemoryStore()
	convRepo := &memoryConversationRepo{store: store}
	msgRepo := &memoryMessageRepo{store: store}
	return &fixture{
		store:        store,
		convRepo:     convRepo,
		msgRepo:      msgRepo,
		conversation: NewConversationService(convRepo, msgRepo, passthroughTx{}),
		messages:     NewMessageService(msgRepo, convRepo, passthroughTx{}),
	}
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
func int64Ptr(i int64) *int64 { return &i }
