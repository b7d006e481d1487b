package datasourcerepo

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	domain "menlo.ai/analytics-gateway/app/domain/datasource"
	"menlo.ai/analytics-gateway/app/domain/query"
	"menlo.ai/analytics-gateway/app/infrastructure/database/dbschema"
	"menlo.ai/analytics-gateway/app/infrastructure/database/repository/transaction"
)

type DataSourceGormRepository struct {
	db *transaction.Database
}

var _ domain.Repository = (*DataSourceGormRepository)(nil)

func NewDataSourceGormRepository(db *transaction.Database) domain.Repository {
	return &DataSourceGormRepository{db: db}
}

func preloadColumns(tx *gorm.DB) *gorm.DB {
	return tx.Preload("Columns", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC, id ASC")
	})
}

func (r *DataSourceGormRepository) FindByID(ctx context.Context, id int) (*domain.DataSource, error) {
	tx := r.db.GetTx(ctx)
	var model dbschema.DataSource
	if err := preloadColumns(tx.WithContext(ctx)).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return model.EtoD(), nil
}

func (r *DataSourceGormRepository) FindByFilter(ctx context.Context, filter domain.DataSourceFilter, pagination *query.Pagination) ([]*domain.DataSource, error) {
	tx := r.db.GetTx(ctx)
	sql := tx.WithContext(ctx).Model(&dbschema.DataSource{})
	sql = applyFilter(sql, filter)
	sql = applyPagination(sql, pagination)

	var models []dbschema.DataSource
	if err := preloadColumns(sql).Find(&models).Error; err != nil {
		return nil, err
	}
	result := make([]*domain.DataSource, len(models))
	for i := range models {
		result[i] = models[i].EtoD()
	}
	return result, nil
}

func (r *DataSourceGormRepository) Count(ctx context.Context, filter domain.DataSourceFilter) (int64, error) {
	tx := r.db.GetTx(ctx)
	sql := applyFilter(tx.WithContext(ctx).Model(&dbschema.DataSource{}), filter)
	var count int64
	if err := sql.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func applyFilter(sql *gorm.DB, filter domain.DataSourceFilter) *gorm.DB {
	if filter.Active != nil {
		sql = sql.Where("active = ?", *filter.Active)
	}
	if filter.Kind != nil {
		sql = sql.Where("kind = ?", string(*filter.Kind))
	}
	return sql
}

func applyPagination(sql *gorm.DB, pagination *query.Pagination) *gorm.DB {
	if pagination == nil {
		return sql.Order("id ASC")
	}
	if pagination.Limit != nil {
		sql = sql.Limit(*pagination.Limit)
	}
	if pagination.Offset != nil {
		sql = sql.Offset(*pagination.Offset)
	}
	order := "ASC"
	if strings.ToLower(pagination.Order) == "desc" {
		order = "DESC"
	}
	if pagination.After != nil {
		if order == "DESC" {
			sql = sql.Where("id < ?", *pagination.After)
		} else {
			sql = sql.Where("id > ?", *pagination.After)
		}
	}
	return sql.Order("id " + order)
}
