package config

import (
	"testing"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN_ReadCommittedOnEveryConnection(t *testing.T) {
	t.Setenv("DB_USER", "app")
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("DB_HOST", "10.0.0.5")
	t.Setenv("DB_PORT", "3306")
	t.Setenv("DB_NAME", "casewise")

	dsn := DSN()
	assert.Contains(t, dsn, "transaction_isolation=%27READ-COMMITTED%27")

	cfg, err := mysqldriver.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "tcp", cfg.Net)
	assert.Equal(t, "10.0.0.5:3306", cfg.Addr)
	assert.Equal(t, "casewise", cfg.DBName)
	assert.True(t, cfg.ParseTime)
	assert.Equal(t, "'READ-COMMITTED'", cfg.Params["transaction_isolation"])
}

func TestDSN_CloudSQLSocket(t *testing.T) {
	t.Setenv("DB_HOST", "/cloudsql/proj:region:db")
	t.Setenv("DB_PORT", "")

	cfg, err := mysqldriver.ParseDSN(DSN())
	require.NoError(t, err)
	assert.Equal(t, "unix", cfg.Net)
	assert.Equal(t, "/cloudsql/proj:region:db", cfg.Addr)
}
