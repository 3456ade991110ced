package repository

import (
	"github.com/google/wire"

	"chathistory-server/internal/infrastructure/database/repository/conversationrepo"
	"chathistory-server/internal/infrastructure/database/repository/messagerepo"
	"chathistory-server/internal/infrastructure/database/repository/userrepo"
)

var RepositoryProvider = wire.NewSet(
	conversationrepo.NewConversationGormRepository,
	messagerepo.NewMessageGormRepository,
	userrepo.NewUserGormRepository,
)
