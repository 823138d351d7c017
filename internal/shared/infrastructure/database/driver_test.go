package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectDriver(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want Driver
	}{
		{"empty defaults to sqlite", "", DriverSQLite},
		{"postgres scheme", "postgres://tempora:pw@localhost:5432/tempora", DriverPostgres},
		{"postgresql scheme", "postgresql://localhost/tempora", DriverPostgres},
		{"sqlite scheme", "sqlite:///tmp/tempora.db", DriverSQLite},
		{"file prefix", "file:data.db", DriverSQLite},
		{"db suffix", "/var/lib/tempora/data.db", DriverSQLite},
		{"sqlite3 suffix", "data.sqlite3", DriverSQLite},
		{"unknown defaults to postgres", "host=localhost dbname=tempora", DriverPostgres},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectDriver(tt.url))
		})
	}
}

func TestDriver_IsValid(t *testing.T) {
	assert.True(t, DriverPostgres.IsValid())
	assert.True(t, DriverSQLite.IsValid())
	assert.False(t, Driver("mysql").IsValid())
}

func TestOpenSQLite_InMemory(t *testing.T) {
	db, err := OpenSQLite(":memory:")
	assert.NoError(t, err)
	defer db.Close()

	var fk int
	err = db.QueryRow("PRAGMA foreign_keys").Scan(&fk)
	assert.NoError(t, err)
	assert.Equal(t, 1, fk)
}
