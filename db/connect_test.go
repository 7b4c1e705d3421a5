package db

import (
	"testing"

	"energy-server/confs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  confs.DatabaseConfig
		want string
	}{
		{
			name: "url without sslmode",
			cfg:  confs.DatabaseConfig{URL: "postgres://u:p@db.example.com/energy"},
			want: "postgres://u:p@db.example.com/energy?sslmode=require",
		},
		{
			name: "url with query",
			cfg:  confs.DatabaseConfig{URL: "postgres://u:p@db.example.com/energy?connect_timeout=5"},
			want: "postgres://u:p@db.example.com/energy?connect_timeout=5&sslmode=require",
		},
		{
			name: "url keeps explicit sslmode",
			cfg:  confs.DatabaseConfig{URL: "postgres://localhost/energy?sslmode=disable"},
			want: "postgres://localhost/energy?sslmode=disable",
		},
		{
			name: "local parts disable ssl",
			cfg:  confs.DatabaseConfig{Host: "localhost", Port: "5432", User: "u", Password: "p", Name: "energy"},
			want: "host=localhost user=u password=p dbname=energy port=5432 sslmode=disable TimeZone=UTC",
		},
		{
			name: "remote parts require ssl",
			cfg:  confs.DatabaseConfig{Host: "db.internal", Port: "5432", User: "u", Password: "p", Name: "energy"},
			want: "host=db.internal user=u password=p dbname=energy port=5432 sslmode=require TimeZone=UTC",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildDSN(tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildDSN_Missing(t *testing.T) {
	_, err := BuildDSN(confs.DatabaseConfig{Host: "localhost"})
	assert.ErrorIs(t, err, confs.ErrMissingDatabase)
}
