package db

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMigrateDSN(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{"postgres://u:p@localhost:5432/db", "pgx5://u:p@localhost:5432/db"},
		{"postgresql://u:p@localhost/db?sslmode=disable", "pgx5://u:p@localhost/db?sslmode=disable"},
		{"pgx5://localhost/db", "pgx5://localhost/db"},
	}

	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			require.Equal(t, tt.want, migrateDSN(tt.dsn))
		})
	}
}

func TestMigrations_Embedded(t *testing.T) {
	entries, err := migrations.ReadDir("migrations")
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	require.Contains(t, names, "000001_create_credentials.up.sql")
	require.Contains(t, names, "000001_create_credentials.down.sql")
}
