package handlers

import (
	"github.com/google/wire"

	"chathistory-server/internal/interfaces/httpserver/handlers/conversationhandler"
	"chathistory-server/internal/interfaces/httpserver/handlers/messagehandler"
)

// HandlerProvider wires the HTTP handlers.
var HandlerProvider = wire.NewSet(
	conversationhandler.NewConversationHandler,
	messagehandler.NewMessageHandler,
)
