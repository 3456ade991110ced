package conversation

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chathistory-server/internal/domain/query"
	"chathistory-server/internal/utils/idgen"
	"chathistory-server/internal/utils/platformerrors"
)

const (
	ownerID    uint = 1
	strangerID uint = 2
)

func mustCreateConversation(t *testing.T, f *fixture, userID uint, title *string) *Conversation {
	t.Helper()
	view, err := f.conversation.CreateConversation(context.Background(), CreateConversationInput{
		UserID: userID,
		Title:  title,
	})
	require.NoError(t, err)
	return view.Conversation
}

func mustAppend(t *testing.T, f *fixture, userID uint, convID string, input AppendMessageInput) *Message {
	t.Helper()
	msg, err := f.messages.AppendMessage(context.Background(), userID, convID, input)
	require.NoError(t, err)
	return msg
}

func TestCreateConversation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	t.Run("defaults title when absent", func(t *testing.T) {
		view, err := f.conversation.CreateConversation(ctx, CreateConversationInput{UserID: ownerID})
		require.NoError(t, err)

		conv := view.Conversation
		assert.Equal(t, DefaultTitle, conv.Title)
		assert.Equal(t, ConversationStatusActive, conv.Status)
		assert.True(t, idgen.ValidateIDFormat(conv.PublicID, "conv"))
		assert.Zero(t, conv.TokenCount)
		assert.Equal(t, int64(0), view.MessageCount)
	})

	t.Run("keeps explicit title", func(t *testing.T) {
		view, err := f.conversation.CreateConversation(ctx, CreateConversationInput{
			UserID: ownerID,
			Title:  strPtr("Trip planning"),
		})
		require.NoError(t, err)
		assert.Equal(t, "Trip planning", view.Conversation.Title)
	})

	t.Run("rejects overlong title", func(t *testing.T) {
		_, err := f.conversation.CreateConversation(ctx, CreateConversationInput{
			UserID: ownerID,
			Title:  strPtr(strings.Repeat("x", 256)),
		})
		require.Error(t, err)
		assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))
	})

	t.Run("rejects malformed metadata", func(t *testing.T) {
		_, err := f.conversation.CreateConversation(ctx, CreateConversationInput{
			UserID:   ownerID,
			Metadata: strPtr("not-json"),
		})
		require.Error(t, err)
		assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))
	})

	t.Run("retries ID generation on collision", func(t *testing.T) {
		g := newFixture()
		g.convRepo.conflictsLeft = 2

		view, err := g.conversation.CreateConversation(ctx, CreateConversationInput{UserID: ownerID})
		require.NoError(t, err)
		assert.NotEmpty(t, view.Conversation.PublicID)
	})

	t.Run("gives up after exhausting ID attempts", func(t *testing.T) {
		g := newFixture()
		g.convRepo.conflictsLeft = maxIDAttempts

		_, err := g.conversation.CreateConversation(ctx, CreateConversationInput{UserID: ownerID})
		require.Error(t, err)
		assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeInternal))
	})
}

func TestGetConversation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	conv := mustCreateConversation(t, f, ownerID, strPtr("Owned"))

	t.Run("owner sees the conversation", func(t *testing.T) {
		view, err := f.conversation.GetConversation(ctx, ownerID, conv.PublicID, false)
		require.NoError(t, err)
		assert.Equal(t, conv.PublicID, view.Conversation.PublicID)
	})

	t.Run("foreign owner gets not found, not forbidden", func(t *testing.T) {
		_, err := f.conversation.GetConversation(ctx, strangerID, conv.PublicID, false)
		require.Error(t, err)
		assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))
	})

	t.Run("unknown ID gets not found", func(t *testing.T) {
		_, err := f.conversation.GetConversation(ctx, ownerID, "conv_000000000000", false)
		require.Error(t, err)
		assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))
	})

	t.Run("malformed ID rejected before lookup", func(t *testing.T) {
		_, err := f.conversation.GetConversation(ctx, ownerID, "not-an-id", false)
		require.Error(t, err)
		assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))
	})

	t.Run("view with messages is internally consistent", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			mustAppend(t, f, ownerID, conv.PublicID, AppendMessageInput{
				Role:    MessageRoleUser,
				Content: "hello",
			})
		}

		view, err := f.conversation.GetConversation(ctx, ownerID, conv.PublicID, true)
		require.NoError(t, err)
		assert.Equal(t, int64(3), view.MessageCount)
		assert.Len(t, view.Messages, 3)
		require.NotNil(t, view.LastMessage)
		assert.Equal(t, view.Messages[len(view.Messages)-1].PublicID, view.LastMessage.PublicID)
	})
}

func TestListConversations(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		mustCreateConversation(t, f, ownerID, strPtr("Owner conversation"))
	}
	mustCreateConversation(t, f, strangerID, strPtr("Stranger conversation"))
	archived := mustCreateConversation(t, f, ownerID, strPtr("Old thread"))
	_, err := f.conversation.ArchiveConversation(ctx, ownerID, archived.PublicID)
	require.NoError(t, err)

	t.Run("lists only the owner's conversations", func(t *testing.T) {
		page, err := f.conversation.ListConversations(ctx, ownerID, nil, query.NewPagination(0, 10), query.DefaultSort())
		require.NoError(t, err)
		assert.Equal(t, int64(6), page.TotalItems)
		for _, view := range page.Items {
			assert.Equal(t, ownerID, view.Conversation.UserID)
		}
	})

	t.Run("filters by status", func(t *testing.T) {
		status := ConversationStatusArchived
		page, err := f.conversation.ListConversations(ctx, ownerID, &status, query.NewPagination(0, 10), query.DefaultSort())
		require.NoError(t, err)
		require.Equal(t, int64(1), page.TotalItems)
		assert.Equal(t, archived.PublicID, page.Items[0].Conversation.PublicID)
	})

	t.Run("paginates with totals", func(t *testing.T) {
		page, err := f.conversation.ListConversations(ctx, ownerID, nil, query.NewPagination(1, 4), query.DefaultSort())
		require.NoError(t, err)
		assert.Equal(t, int64(6), page.TotalItems)
		assert.Equal(t, 2, page.TotalPages)
		assert.Len(t, page.Items, 2)
	})

	t.Run("rejects unknown status filter", func(t *testing.T) {
		bogus := ConversationStatus("paused")
		_, err := f.conversation.ListConversations(ctx, ownerID, &bogus, query.NewPagination(0, 10), query.DefaultSort())
		require.Error(t, err)
		assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))
	})

	t.Run("counts by owner and status", func(t *testing.T) {
		total, err := f.conversation.CountConversations(ctx, ownerID, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(6), total)

		status := ConversationStatusArchived
		archivedCount, err := f.conversation.CountConversations(ctx, ownerID, &status)
		require.NoError(t, err)
		assert.Equal(t, int64(1), archivedCount)
	})
}

func TestUpdateConversation(t *testing.T) {
	ctx := context.Background()

	t.Run("absent keys leave fields untouched", func(t *testing.T) {
		f := newFixture()
		conv := mustCreateConversation(t, f, ownerID, strPtr("Keep me"))

		view, err := f.conversation.UpdateConversation(ctx, ownerID, conv.PublicID, UpdatePatch{
			Summary: NewField("recap"),
		})
		require.NoError(t, err)
		assert.Equal(t, "Keep me", view.Conversation.Title)
		require.NotNil(t, view.Conversation.Summary)
		assert.Equal(t, "recap", *view.Conversation.Summary)
	})

	t.Run("null title resets to default", func(t *testing.T) {
		f := newFixture()
		conv := mustCreateConversation(t, f, ownerID, strPtr("Custom"))

		view, err := f.conversation.UpdateConversation(ctx, ownerID, conv.PublicID, UpdatePatch{
			Title: NullField[string](),
		})
		require.NoError(t, err)
		assert.Equal(t, DefaultTitle, view.Conversation.Title)
	})

	t.Run("null summary clears it", func(t *testing.T) {
		f := newFixture()
		conv := mustCreateConversation(t, f, ownerID, nil)
		_, err := f.conversation.UpdateConversation(ctx, ownerID, conv.PublicID, UpdatePatch{Summary: NewField("recap")})
		require.NoError(t, err)

		view, err := f.conversation.UpdateConversation(ctx, ownerID, conv.PublicID, UpdatePatch{Summary: NullField[string]()})
		require.NoError(t, err)
		assert.Nil(t, view.Conversation.Summary)
	})

	t.Run("archiving via patch stamps archived_at", func(t *testing.T) {
		f := newFixture()
		conv := mustCreateConversation(t, f, ownerID, nil)

		view, err := f.conversation.UpdateConversation(ctx, ownerID, conv.PublicID, UpdatePatch{
			Status: NewField(ConversationStatusArchived),
		})
		require.NoError(t, err)
		assert.Equal(t, ConversationStatusArchived, view.Conversation.Status)
		assert.NotNil(t, view.Conversation.ArchivedAt)

		view, err = f.conversation.UpdateConversation(ctx, ownerID, conv.PublicID, UpdatePatch{
			Status: NewField(ConversationStatusActive),
		})
		require.NoError(t, err)
		assert.Equal(t, ConversationStatusActive, view.Conversation.Status)
		assert.Nil(t, view.Conversation.ArchivedAt)
	})

	t.Run("deleted status is not patchable", func(t *testing.T) {
		f := newFixture()
		conv := mustCreateConversation(t, f, ownerID, nil)

		_, err := f.conversation.UpdateConversation(ctx, ownerID, conv.PublicID, UpdatePatch{
			Status: NewField(ConversationStatusDeleted),
		})
		require.Error(t, err)
		assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))
	})

	t.Run("empty patch changes nothing but still bumps updated_at", func(t *testing.T) {
		f := newFixture()
		conv := mustCreateConversation(t, f, ownerID, strPtr("Unchanged"))

		before, err := f.conversation.GetConversation(ctx, ownerID, conv.PublicID, false)
		require.NoError(t, err)

		time.Sleep(5 * time.Millisecond)
		view, err := f.conversation.UpdateConversation(ctx, ownerID, conv.PublicID, UpdatePatch{})
		require.NoError(t, err)
		assert.Equal(t, "Unchanged", view.Conversation.Title)
		assert.True(t, view.Conversation.UpdatedAt.After(before.Conversation.UpdatedAt))
	})

	t.Run("foreign owner cannot update", func(t *testing.T) {
		f := newFixture()
		conv := mustCreateConversation(t, f, ownerID, nil)

		_, err := f.conversation.UpdateConversation(ctx, strangerID, conv.PublicID, UpdatePatch{
			Title: NewField("hijacked"),
		})
		require.Error(t, err)
		assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))
	})
}

func TestArchiveConversation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	conv := mustCreateConversation(t, f, ownerID, nil)

	view, err := f.conversation.ArchiveConversation(ctx, ownerID, conv.PublicID)
	require.NoError(t, err)
	assert.Equal(t, ConversationStatusArchived, view.Conversation.Status)
	require.NotNil(t, view.Conversation.ArchivedAt)
	firstArchivedAt := *view.Conversation.ArchivedAt

	// Idempotent: a second archive does not move the timestamp.
	view, err = f.conversation.ArchiveConversation(ctx, ownerID, conv.PublicID)
	require.NoError(t, err)
	assert.Equal(t, ConversationStatusArchived, view.Conversation.Status)
	assert.Equal(t, firstArchivedAt, *view.Conversation.ArchivedAt)
}

func TestDeleteConversation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	conv := mustCreateConversation(t, f, ownerID, nil)
	for i := 0; i < 3; i++ {
		mustAppend(t, f, ownerID, conv.PublicID, AppendMessageInput{Role: MessageRoleUser, Content: "hi"})
	}

	require.NoError(t, f.conversation.DeleteConversation(ctx, ownerID, conv.PublicID))

	_, err := f.conversation.GetConversation(ctx, ownerID, conv.PublicID, false)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))

	// The message stream went with it.
	count, err := f.msgRepo.Count(ctx, conv.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSearchConversations(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	mustCreateConversation(t, f, ownerID, strPtr("Weekend trip to Lisbon"))
	mustCreateConversation(t, f, ownerID, strPtr("Grocery list"))
	mustCreateConversation(t, f, strangerID, strPtr("Another trip"))

	views, err := f.conversation.SearchConversations(ctx, ownerID, "TRIP")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "Weekend trip to Lisbon", views[0].Conversation.Title)
}

func TestUpdateSummary(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	conv := mustCreateConversation(t, f, ownerID, nil)

	updated, err := f.conversation.UpdateSummary(ctx, conv.PublicID, "short recap")
	require.NoError(t, err)
	require.NotNil(t, updated.Summary)
	assert.Equal(t, "short recap", *updated.Summary)

	_, err = f.conversation.UpdateSummary(ctx, "conv_000000000000", "recap")
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))
}

func TestReconcileTokenCounts(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	conv := mustCreateConversation(t, f, ownerID, nil)
	mustAppend(t, f, ownerID, conv.PublicID, AppendMessageInput{
		Role:        MessageRoleAssistant,
		Content:     "answer",
		TotalTokens: intPtr(40),
	})

	// Force drift.
	f.store.mu.Lock()
	f.store.convs[conv.ID].TokenCount = 999
	f.store.mu.Unlock()

	repaired, err := f.conversation.ReconcileTokenCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, repaired)

	view, err := f.conversation.GetConversation(ctx, ownerID, conv.PublicID, false)
	require.NoError(t, err)
	assert.Equal(t, int64(40), view.Conversation.TokenCount)

	// Nothing left to repair.
	repaired, err = f.conversation.ReconcileTokenCounts(ctx)
	require.NoError(t, err)
	assert.Zero(t, repaired)
}

func TestUpdatedAtAdvancesOnAppend(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	conv := mustCreateConversation(t, f, ownerID, nil)

	before, err := f.conversation.GetConversation(ctx, ownerID, conv.PublicID, false)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	mustAppend(t, f, ownerID, conv.PublicID, AppendMessageInput{Role: MessageRoleUser, Content: "hi"})

	after, err := f.conversation.GetConversation(ctx, ownerID, conv.PublicID, false)
	require.NoError(t, err)
	assert.True(t, after.Conversation.UpdatedAt.After(before.Conversation.UpdatedAt))
}
