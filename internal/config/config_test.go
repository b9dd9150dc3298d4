package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_USER", "postgres")
	t.Setenv("DB_PASSWORD", "postgres")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8084", cfg.App.Port)
	assert.Equal(t, "5432", cfg.Postgres.Port)
	assert.Equal(t, "disable", cfg.Postgres.SSLMode)
	assert.Equal(t, 4, cfg.Sharding.ShardCount)
	assert.Equal(t, "order_shard", cfg.Sharding.DBNamePrefix)
	assert.Equal(t, "order-exchange", cfg.Rabbit.Exchange)
	assert.Equal(t, 5*time.Second, cfg.Cart.Timeout)
}

func TestLoad_MissingRequired(t *testing.T) {
	tests := []struct {
		name  string
		unset string
	}{
		{name: "db_host", unset: "DB_HOST"},
		{name: "db_user", unset: "DB_USER"},
		{name: "db_password", unset: "DB_PASSWORD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.unset, "")

			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestLoad_ShardCount(t *testing.T) {
	setRequiredEnv(t)

	t.Run("override", func(t *testing.T) {
		t.Setenv("SHARD_COUNT", "8")
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, 8, cfg.Sharding.ShardCount)
	})

	t.Run("non_positive_rejected", func(t *testing.T) {
		t.Setenv("SHARD_COUNT", "-1")
		_, err := Load("")
		assert.Error(t, err)
	})
}
