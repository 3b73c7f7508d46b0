package redis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clearance/internal/platform/config"
)

func TestNew(t *testing.T) {
	t.Run("unconfigured returns nil", func(t *testing.T) {
		client, err := New(context.Background(), config.RedisConfig{})
		require.NoError(t, err)
		assert.Nil(t, client)
	})

	t.Run("malformed url", func(t *testing.T) {
		_, err := New(context.Background(), config.RedisConfig{URL: "http://not-redis"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse REDIS_URL")
	})
}
