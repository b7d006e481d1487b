package main

import (
	"gorm.io/driver/postgres"
	"gorm.io/gen"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
	"menlo.ai/analytics-gateway/cmd/codegen/gorm/models/datasource"
	"menlo.ai/analytics-gateway/config/environment_variables"
)

func main() {
	environment_variables.EnvironmentVariables.LoadFromEnv()
	db, err := gorm.Open(postgres.Open(environment_variables.EnvironmentVariables.DB_POSTGRESQL_WRITE_DSN), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			SingularTable: true,
		},
	})
	if err != nil {
		panic(err)
	}

	g := gen.NewGenerator(gen.Config{
		OutPath:       "./app/infrastructure/database/gormgen",
		Mode:          gen.WithDefaultQuery | gen.WithQueryInterface | gen.WithoutContext,
		FieldNullable: true,
	})

	g.UseDB(db)
	datasource.RegisterDataSource(g)
	g.Execute()
}
