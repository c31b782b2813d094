package db_client

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestOptions_DSN(t *testing.T) {
	o := Options{
		Host:     "db",
		Port:     "5432",
		User:     "relay",
		Password: "p@ss/word",
		Database: "relay_db",
		SSLMode:  "disable",
	}
	require.Equal(t, "postgres://relay:p%40ss%2Fword@db:5432/relay_db?sslmode=disable", o.DSN())
}

func TestMigrate(t *testing.T) {
	req := require.New(t)
	db, mock, err := sqlmock.New()
	req.NoError(err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS users")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	req.NoError(Migrate(context.Background(), db))
	req.NoError(mock.ExpectationsWereMet())
}

func TestMigrate_Failure(t *testing.T) {
	req := require.New(t)
	db, mock, err := sqlmock.New()
	req.NoError(err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("permission denied"))

	err = Migrate(context.Background(), db)
	req.ErrorContains(err, "001_init.sql")
}
