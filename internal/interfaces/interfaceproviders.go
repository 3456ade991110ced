package interfaces

import (
	"github.com/google/wire"

	"chathistory-server/internal/interfaces/httpserver"
	"chathistory-server/internal/interfaces/httpserver/handlers"
	"chathistory-server/internal/interfaces/httpserver/routes"
)

// InterfaceProvider wires the HTTP transport layer.
var InterfaceProvider = wire.NewSet(
	handlers.HandlerProvider,
	routes.RoutesProvider,
	httpserver.NewHttpServer,
)
