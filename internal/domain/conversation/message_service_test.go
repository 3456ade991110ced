package conversation

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chathistory-server/internal/domain/query"
	"chathistory-server/internal/utils/idgen"
	"chathistory-server/internal/utils/platformerrors"
)

func TestAppendMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("appends and accumulates tokens", func(t *testing.T) {
		f := newFixture()
		conv := mustCreateConversation(t, f, ownerID, nil)

		msg := mustAppend(t, f, ownerID, conv.PublicID, AppendMessageInput{
			Role:             MessageRoleAssistant,
			Content:          "The capital is Lisbon.",
			Provider:         strPtr("openai"),
			Model:            strPtr("gpt-4o"),
			PromptTokens:     intPtr(12),
			CompletionTokens: intPtr(8),
			TotalTokens:      intPtr(20),
			LatencyMs:        int64Ptr(350),
		})

		assert.True(t, idgen.ValidateIDFormat(msg.PublicID, "msg"))
		assert.NotNil(t, msg.ProcessedAt)

		view, err := f.conversation.GetConversation(ctx, ownerID, conv.PublicID, false)
		require.NoError(t, err)
		assert.Equal(t, int64(20), view.Conversation.TokenCount)
		assert.Equal(t, int64(1), view.MessageCount)
	})

	t.Run("missing token usage accumulates zero but still touches the conversation", func(t *testing.T) {
		f := newFixture()
		conv := mustCreateConversation(t, f, ownerID, nil)

		before, err := f.conversation.GetConversation(ctx, ownerID, conv.PublicID, false)
		require.NoError(t, err)

		time.Sleep(5 * time.Millisecond)
		msg := mustAppend(t, f, ownerID, conv.PublicID, AppendMessageInput{
			Role:    MessageRoleUser,
			Content: "what is the capital of Portugal?",
		})
		assert.Nil(t, msg.ProcessedAt)

		after, err := f.conversation.GetConversation(ctx, ownerID, conv.PublicID, false)
		require.NoError(t, err)
		assert.Zero(t, after.Conversation.TokenCount)
		assert.True(t, after.Conversation.UpdatedAt.After(before.Conversation.UpdatedAt))
	})

	t.Run("token counts without latency leave the message unprocessed", func(t *testing.T) {
		f := newFixture()
		conv := mustCreateConversation(t, f, ownerID, nil)

		msg := mustAppend(t, f, ownerID, conv.PublicID, AppendMessageInput{
			Role:        MessageRoleAssistant,
			Content:     "placeholder while the completion streams",
			TotalTokens: intPtr(5),
		})
		assert.Nil(t, msg.ProcessedAt)

		view, err := f.conversation.GetConversation(ctx, ownerID, conv.PublicID, false)
		require.NoError(t, err)
		assert.Equal(t, int64(5), view.Conversation.TokenCount)
	})

	t.Run("rejects empty content", func(t *testing.T) {
		f := newFixture()
		conv := mustCreateConversation(t, f, ownerID, nil)

		_, err := f.messages.AppendMessage(ctx, ownerID, conv.PublicID, AppendMessageInput{
			Role:    MessageRoleUser,
			Content: "   ",
		})
		require.Error(t, err)
		assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))
	})

	t.Run("rejects unknown role", func(t *testing.T) {
		f := newFixture()
		conv := mustCreateConversation(t, f, ownerID, nil)

		_, err := f.messages.AppendMessage(ctx, ownerID, conv.PublicID, AppendMessageInput{
			Role:    MessageRole("moderator"),
			Content: "hi",
		})
		require.Error(t, err)
		assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))
	})

	t.Run("rejects negative token counts", func(t *testing.T) {
		f := newFixture()
		conv := mustCreateConversation(t, f, ownerID, nil)

		_, err := f.messages.AppendMessage(ctx, ownerID, conv.PublicID, AppendMessageInput{
			Role:        MessageRoleAssistant,
			Content:     "hi",
			TotalTokens: intPtr(-5),
		})
		require.Error(t, err)
		assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))
	})

	t.Run("foreign owner cannot append", func(t *testing.T) {
		f := newFixture()
		conv := mustCreateConversation(t, f, ownerID, nil)

		_, err := f.messages.AppendMessage(ctx, strangerID, conv.PublicID, AppendMessageInput{
			Role:    MessageRoleUser,
			Content: "hi",
		})
		require.Error(t, err)
		assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))
	})

	t.Run("resolves parent message within the conversation", func(t *testing.T) {
		f := newFixture()
		conv := mustCreateConversation(t, f, ownerID, nil)
		parent := mustAppend(t, f, ownerID, conv.PublicID, AppendMessageInput{
			Role:    MessageRoleUser,
			Content: "question",
		})

		child := mustAppend(t, f, ownerID, conv.PublicID, AppendMessageInput{
			Role:           MessageRoleAssistant,
			Content:        "answer",
			ParentPublicID: &parent.PublicID,
		})
		require.NotNil(t, child.ParentPublicID)
		assert.Equal(t, parent.PublicID, *child.ParentPublicID)

		_, err := f.messages.AppendMessage(ctx, ownerID, conv.PublicID, AppendMessageInput{
			Role:           MessageRoleAssistant,
			Content:        "answer",
			ParentPublicID: strPtr("msg_000000000000"),
		})
		require.Error(t, err)
		assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))
	})

	t.Run("retries ID generation on collision", func(t *testing.T) {
		f := newFixture()
		conv := mustCreateConversation(t, f, ownerID, nil)
		f.msgRepo.conflictsLeft = 2

		msg := mustAppend(t, f, ownerID, conv.PublicID, AppendMessageInput{
			Role:    MessageRoleUser,
			Content: "hi",
		})
		assert.NotEmpty(t, msg.PublicID)
	})
}

func TestConcurrentAppendsAccumulateExactly(t *testing.T) {
	f := newFixture()
	conv := mustCreateConversation(t, f, ownerID, nil)

	const (
		appenders       = 20
		tokensPerAppend = 10
	)

	var wg sync.WaitGroup
	errs := make(chan error, appenders)
	for i := 0; i < appenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.messages.AppendMessage(context.Background(), ownerID, conv.PublicID, AppendMessageInput{
				Role:        MessageRoleAssistant,
				Content:     fmt.Sprintf("chunk %d", i),
				TotalTokens: intPtr(tokensPerAppend),
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	view, err := f.conversation.GetConversation(context.Background(), ownerID, conv.PublicID, false)
	require.NoError(t, err)
	assert.Equal(t, int64(appenders*tokensPerAppend), view.Conversation.TokenCount)
	assert.Equal(t, int64(appenders), view.MessageCount)
}

func TestListMessages(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	conv := mustCreateConversation(t, f, ownerID, nil)

	base := time.Now().UTC()
	var ids []string
	for i := 0; i < 5; i++ {
		msg := mustAppend(t, f, ownerID, conv.PublicID, AppendMessageInput{
			Role:    MessageRoleUser,
			Content: fmt.Sprintf("message %d", i),
		})
		// Spread creation times so ordering is unambiguous.
		f.store.mu.Lock()
		f.store.msgs[msg.ID].CreatedAt = base.Add(time.Duration(i) * time.Second)
		f.store.mu.Unlock()
		ids = append(ids, msg.PublicID)
	}

	t.Run("chronological order", func(t *testing.T) {
		msgs, err := f.messages.ListMessages(ctx, ownerID, conv.PublicID)
		require.NoError(t, err)
		require.Len(t, msgs, 5)
		for i, msg := range msgs {
			assert.Equal(t, ids[i], msg.PublicID)
		}
	})

	t.Run("paged listing keeps order and totals", func(t *testing.T) {
		page, err := f.messages.ListMessagesPaged(ctx, ownerID, conv.PublicID, query.NewPagination(1, 2))
		require.NoError(t, err)
		assert.Equal(t, int64(5), page.TotalItems)
		assert.Equal(t, 3, page.TotalPages)
		require.Len(t, page.Items, 2)
		assert.Equal(t, ids[2], page.Items[0].PublicID)
		assert.Equal(t, ids[3], page.Items[1].PublicID)
	})

	t.Run("recent is newest first", func(t *testing.T) {
		msgs, err := f.messages.ListRecentMessages(ctx, ownerID, conv.PublicID, 3)
		require.NoError(t, err)
		require.Len(t, msgs, 3)
		assert.Equal(t, ids[4], msgs[0].PublicID)
		assert.Equal(t, ids[3], msgs[1].PublicID)
		assert.Equal(t, ids[2], msgs[2].PublicID)
	})

	t.Run("last message", func(t *testing.T) {
		msg, err := f.messages.LastMessage(ctx, ownerID, conv.PublicID)
		require.NoError(t, err)
		assert.Equal(t, ids[4], msg.PublicID)
	})

	t.Run("since excludes messages created at the cutoff", func(t *testing.T) {
		msgs, err := f.messages.ListMessagesSince(ctx, ownerID, conv.PublicID, base.Add(3*time.Second))
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, ids[4], msgs[0].PublicID)

		msgs, err = f.messages.ListMessagesSince(ctx, ownerID, conv.PublicID, base.Add(4*time.Second))
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})

	t.Run("empty conversation has no last message", func(t *testing.T) {
		other := mustCreateConversation(t, f, ownerID, nil)
		msg, err := f.messages.LastMessage(ctx, ownerID, other.PublicID)
		require.NoError(t, err)
		assert.Nil(t, msg)
	})
}

func TestListMessagesByRole(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	conv := mustCreateConversation(t, f, ownerID, nil)
	mustAppend(t, f, ownerID, conv.PublicID, AppendMessageInput{Role: MessageRoleUser, Content: "q1"})
	mustAppend(t, f, ownerID, conv.PublicID, AppendMessageInput{Role: MessageRoleAssistant, Content: "a1"})
	mustAppend(t, f, ownerID, conv.PublicID, AppendMessageInput{Role: MessageRoleUser, Content: "q2"})

	msgs, err := f.messages.ListMessagesByRole(ctx, ownerID, conv.PublicID, MessageRoleUser)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)

	_, err = f.messages.ListMessagesByRole(ctx, ownerID, conv.PublicID, MessageRole("bot"))
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))
}

func TestListReplies(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	conv := mustCreateConversation(t, f, ownerID, nil)
	parent := mustAppend(t, f, ownerID, conv.PublicID, AppendMessageInput{Role: MessageRoleUser, Content: "root"})
	mustAppend(t, f, ownerID, conv.PublicID, AppendMessageInput{
		Role: MessageRoleAssistant, Content: "reply 1", ParentPublicID: &parent.PublicID,
	})
	mustAppend(t, f, ownerID, conv.PublicID, AppendMessageInput{
		Role: MessageRoleAssistant, Content: "reply 2", ParentPublicID: &parent.PublicID,
	})
	mustAppend(t, f, ownerID, conv.PublicID, AppendMessageInput{Role: MessageRoleUser, Content: "unrelated"})

	replies, err := f.messages.ListReplies(ctx, ownerID, conv.PublicID, parent.PublicID)
	require.NoError(t, err)
	assert.Len(t, replies, 2)
}

func TestSearchMessages(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	conv := mustCreateConversation(t, f, ownerID, nil)
	mustAppend(t, f, ownerID, conv.PublicID, AppendMessageInput{Role: MessageRoleUser, Content: "Plan a trip to Lisbon"})
	mustAppend(t, f, ownerID, conv.PublicID, AppendMessageInput{Role: MessageRoleAssistant, Content: "Sure, when?"})

	msgs, err := f.messages.SearchMessages(ctx, ownerID, conv.PublicID, "lisbon")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Plan a trip to Lisbon", msgs[0].Content)
}

func TestGetMessage(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	conv := mustCreateConversation(t, f, ownerID, nil)
	msg := mustAppend(t, f, ownerID, conv.PublicID, AppendMessageInput{Role: MessageRoleUser, Content: "hello"})

	got, err := f.messages.GetMessage(ctx, ownerID, conv.PublicID, msg.PublicID)
	require.NoError(t, err)
	assert.Equal(t, msg.PublicID, got.PublicID)

	// A message belongs to exactly one conversation.
	other := mustCreateConversation(t, f, ownerID, nil)
	_, err = f.messages.GetMessage(ctx, ownerID, other.PublicID, msg.PublicID)
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))
}

func TestDeleteMessage(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	conv := mustCreateConversation(t, f, ownerID, nil)
	msg := mustAppend(t, f, ownerID, conv.PublicID, AppendMessageInput{
		Role: MessageRoleAssistant, Content: "answer", TotalTokens: intPtr(30),
	})
	mustAppend(t, f, ownerID, conv.PublicID, AppendMessageInput{
		Role: MessageRoleAssistant, Content: "another", TotalTokens: intPtr(12),
	})

	require.NoError(t, f.messages.DeleteMessage(ctx, ownerID, conv.PublicID, msg.PublicID))

	view, err := f.conversation.GetConversation(ctx, ownerID, conv.PublicID, false)
	require.NoError(t, err)
	assert.Equal(t, int64(12), view.Conversation.TokenCount)
	assert.Equal(t, int64(1), view.MessageCount)
}

func TestDeleteAllMessages(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	conv := mustCreateConversation(t, f, ownerID, nil)
	for i := 0; i < 4; i++ {
		mustAppend(t, f, ownerID, conv.PublicID, AppendMessageInput{
			Role: MessageRoleAssistant, Content: "chunk", TotalTokens: intPtr(5),
		})
	}

	deleted, err := f.messages.DeleteAllMessages(ctx, ownerID, conv.PublicID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), deleted)

	// The conversation survives with a zeroed token count.
	view, err := f.conversation.GetConversation(ctx, ownerID, conv.PublicID, false)
	require.NoError(t, err)
	assert.Zero(t, view.Conversation.TokenCount)
	assert.Zero(t, view.MessageCount)
	assert.Nil(t, view.LastMessage)
}

func TestMessageStats(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	conv := mustCreateConversation(t, f, ownerID, nil)

	mustAppend(t, f, ownerID, conv.PublicID, AppendMessageInput{Role: MessageRoleUser, Content: "q1"})
	mustAppend(t, f, ownerID, conv.PublicID, AppendMessageInput{
		Role: MessageRoleAssistant, Content: "a1", TotalTokens: intPtr(30), LatencyMs: int64Ptr(200),
	})
	mustAppend(t, f, ownerID, conv.PublicID, AppendMessageInput{
		Role: MessageRoleAssistant, Content: "a2", TotalTokens: intPtr(10), LatencyMs: int64Ptr(400),
	})

	stats, err := f.messages.Stats(ctx, ownerID, conv.PublicID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalMessages)
	assert.Equal(t, int64(1), stats.UserMessages)
	assert.Equal(t, int64(2), stats.AssistantMessages)
	assert.Equal(t, int64(40), stats.TotalTokens)
	assert.InDelta(t, 300.0, stats.AverageLatencyMs, 0.001)

	t.Run("empty conversation reports zeros", func(t *testing.T) {
		other := mustCreateConversation(t, f, ownerID, nil)
		stats, err := f.messages.Stats(ctx, ownerID, other.PublicID)
		require.NoError(t, err)
		assert.Zero(t, stats.TotalMessages)
		assert.Zero(t, stats.TotalTokens)
		assert.Zero(t, stats.AverageLatencyMs)
	})
}
