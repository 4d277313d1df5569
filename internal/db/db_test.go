package db

import (
	"testing"

	"github.com/shinyyama/campus-exchange/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestBuildDSN(t *testing.T) {
	base := config.Config{DBUser: "app", DBPassword: "pw", DBName: "campus", DBPort: "3306"}

	tests := []struct {
		name     string
		host     string
		instance string
		wantAddr string
	}{
		{name: "plain host", host: "127.0.0.1", wantAddr: "tcp(127.0.0.1:3306)"},
		{name: "tcp passthrough", host: "tcp(db:3307)", wantAddr: "tcp(db:3307)"},
		{name: "unix passthrough", host: "unix(/tmp/mysql.sock)", wantAddr: "unix(/tmp/mysql.sock)"},
		{name: "socket path", host: "/var/run/mysqld.sock", wantAddr: "unix(/var/run/mysqld.sock)"},
		{name: "cloud sql", host: "ignored", instance: "proj:region:inst", wantAddr: "unix(/cloudsql/proj:region:inst)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			cfg.DBHost = tt.host
			cfg.InstanceConnectionName = tt.instance
			want := "app:pw@" + tt.wantAddr + "/campus?charset=utf8mb4&parseTime=True&loc=UTC"
			assert.Equal(t, want, BuildDSN(&cfg))
		})
	}
}
