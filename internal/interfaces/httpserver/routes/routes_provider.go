package routes

import (
	"github.com/google/wire"

	"chathistory-server/internal/interfaces/httpserver/routes/v1"
	"chathistory-server/internal/interfaces/httpserver/routes/v1/conversation"
)

// RoutesProvider wires the HTTP route groups.
var RoutesProvider = wire.NewSet(
	conversation.NewConversationRoute,
	conversation.NewMessageRoute,
	v1.NewV1Route,
)
