package dbschema

import (
	domain "menlo.ai/analytics-gateway/app/domain/datasource"
	"menlo.ai/analytics-gateway/app/infrastructure/database"
)

func init() {
	database.RegisterSchemaForAutoMigrate(DataSource{}, DataSourceColumn{})
}

type DataSource struct {
	BaseModel
	Name             string             `gorm:"type:varchar(150);not null"`
	SchemaName       string             `gorm:"type:varchar(63);not null;default:'public'"`
	SourceTable      string             `gorm:"type:varchar(63);not null"`
	Kind             string             `gorm:"type:varchar(16);not null;default:'measure'"`
	Active           bool               `gorm:"not null;index"`
	DateEndExclusive bool               `gorm:"not null;default:false"`
	Columns          []DataSourceColumn `gorm:"foreignKey:DataSourceID"`
}

type DataSourceColumn struct {
	BaseModel
	DataSourceID uint   `gorm:"not null;index"`
	Name         string `gorm:"type:varchar(63);not null"`
	Role         string `gorm:"type:varchar(32);not null;default:''"`
	Position     int    `gorm:"not null;default:0"`
}

func NewSchemaDataSource(d *domain.DataSource) *DataSource {
	columns := make([]DataSourceColumn, len(d.Columns))
	for i, c := range d.Columns {
		columns[i] = DataSourceColumn{
			DataSourceID: uint(d.ID),
			Name:         c.Name,
			Role:         string(c.Role),
			Position:     i,
		}
	}
	return &DataSource{
		BaseModel: BaseModel{
			ID: uint(d.ID),
		},
		Name:             d.Name,
		SchemaName:       d.SchemaName,
		SourceTable:      d.TableName,
		Kind:             string(d.Kind),
		Active:           d.Active,
		DateEndExclusive: d.DateEndExclusive,
		Columns:          columns,
	}
}

func (d *DataSource) EtoD() *domain.DataSource {
	columns := make([]domain.Column, len(d.Columns))
	for i, c := range d.Columns {
		columns[i] = domain.Column{
			Name: c.Name,
			Role: domain.ColumnRole(c.Role),
		}
	}
	return &domain.DataSource{
		ID:               int(d.ID),
		Name:             d.Name,
		SchemaName:       d.SchemaName,
		TableName:        d.SourceTable,
		Kind:             domain.Kind(d.Kind),
		Active:           d.Active,
		DateEndExclusive: d.DateEndExclusive,
		Columns:          columns,
	}
}
