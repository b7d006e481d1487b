package repository

import (
	"github.com/google/wire"
	"menlo.ai/analytics-gateway/app/infrastructure/database/repository/datasourcerepo"
	"menlo.ai/analytics-gateway/app/infrastructure/database/repository/transaction"
)

var RepositoryProvider = wire.NewSet(
	transaction.NewDatabase,
	datasourcerepo.NewDataSourceGormRepository,
)
