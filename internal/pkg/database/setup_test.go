package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/AccessRelay/internal/pkg/env"
)

func TestSetupDatabase_DisabledWithoutHost(t *testing.T) {
	env.Env = map[string]string{}
	t.Setenv("DB_HOST", "")

	db, err := SetupDatabase()
	require.NoError(t, err)
	assert.Nil(t, db)
	assert.Nil(t, GetDB())
}

func TestBuildDSN_CarriesTimeouts(t *testing.T) {
	env.Env = map[string]string{}
	t.Setenv("DB_USER", "relay")
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("DB_PORT", "3307")
	t.Setenv("DB_NAME", "relay_audit")
	t.Setenv("DB_TIMEOUT", "")

	dsn := buildDSN("db")
	assert.Equal(t, "relay:pw@tcp(db:3307)/relay_audit?charset=utf8mb4&parseTime=True&loc=Local&timeout=5s&readTimeout=5s&writeTimeout=5s", dsn)

	t.Setenv("DB_TIMEOUT", "2s")
	assert.Contains(t, buildDSN("db"), "timeout=2s&readTimeout=2s&writeTimeout=2s")
}
