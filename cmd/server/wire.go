//go:build wireinject

package main

import (
	"github.com/google/wire"

	"chathistory-server/internal/domain"
	"chathistory-server/internal/infrastructure"
	"chathistory-server/internal/interfaces"
)

func CreateApplication() (*Application, error) {
	wire.Build(
		domain.ServiceProvider,
		infrastructure.InfrastructureProvider,
		interfaces.InterfaceProvider,
		wire.Struct(new(Application), "*"),
	)
	return nil, nil
}
