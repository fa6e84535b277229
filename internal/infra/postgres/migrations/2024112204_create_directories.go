package migrations

import (
	_ "embed"
)

//go:embed 0004_create_directories.sql
var createDirectoriesSQL string

func init() {
	Migrations.MustRegister(
		execSQL(createDirectoriesSQL),
		execSQL(`DROP TABLE IF EXISTS profiles; DROP TABLE IF EXISTS group_members`),
	)
}
