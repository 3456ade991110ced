package domain

import (
	"github.com/google/wire"

	"chathistory-server/internal/domain/conversation"
	"chathistory-server/internal/domain/user"
)

// ServiceProvider provides all domain services.
var ServiceProvider = wire.NewSet(
	// Conversation domain
	conversation.NewConversationService,
	conversation.NewMessageService,

	// User domain
	user.NewService,
)
