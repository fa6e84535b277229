package migrations

import (
	_ "embed"
)

//go:embed 0002_create_quiz_index.sql
var createQuizIndexSQL string

func init() {
	Migrations.MustRegister(
		execSQL(createQuizIndexSQL),
		execSQL(`DROP TABLE IF EXISTS quiz_index`),
	)
}
