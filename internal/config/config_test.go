package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"APP_ENV", "LOG_LEVEL", "DATABASE_URL", "SERVER_PORT", "DB_MAX_CONNS",
		"ALLOWED_ORIGINS", "COMPANY_CODE", "ROUND_OFF_LEDGER", "DB_CONNECT_TIMEOUT", "REQUEST_TIMEOUT"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, ":8080", cfg.HTTP.Addr())
	assert.Equal(t, 10, cfg.DB.MaxConns)
	assert.Equal(t, 10*time.Second, cfg.DB.ConnectTimeout)
	assert.Equal(t, "1000", cfg.ERP.CompanyCode)
	assert.Equal(t, "ROUND_OFF", cfg.ERP.RoundOffLedger)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_MAX_CONNS", "25")
	t.Setenv("REQUEST_TIMEOUT", "5s")
	t.Setenv("COMPANY_CODE", "2000")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/erp")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "production", cfg.App.Env)
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, 25, cfg.DB.MaxConns)
	assert.Equal(t, 5*time.Second, cfg.HTTP.RequestTimeout)
	assert.Equal(t, "2000", cfg.ERP.CompanyCode)
	assert.Equal(t, "postgres://u:p@localhost:5432/erp", cfg.DB.DatabaseURL)
}

func TestLoad_MalformedValues(t *testing.T) {
	t.Setenv("SERVER_PORT", "eighty")
	_, err := Load()
	assert.ErrorContains(t, err, "SERVER_PORT")

	t.Setenv("SERVER_PORT", "8080")
	t.Setenv("REQUEST_TIMEOUT", "soon")
	_, err = Load()
	assert.ErrorContains(t, err, "REQUEST_TIMEOUT")
}
