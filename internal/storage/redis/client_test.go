package redis

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "MathAgent/internal/errors"
)

func TestConfigAddrsDropsBlanks(t *testing.T) {
	cfg := Config{Address: " 127.0.0.1:6379 ", Addresses: []string{"", "10.0.0.2:6379"}}
	assert.Equal(t, []string{"127.0.0.1:6379", "10.0.0.2:6379"}, cfg.addrs())
}

func TestNewClientRequiresAddress(t *testing.T) {
	_, err := NewClient(context.Background(), Config{})
	assert.True(t, xerrors.HasCode(err, xerrors.CodeInvalidArgument))
}

func TestNewClientAgainstServer(t *testing.T) {
	addr := os.Getenv("MATHAGENT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("MATHAGENT_TEST_REDIS_ADDR not set")
	}
	client, err := NewClient(context.Background(), Config{Address: addr})
	require.NoError(t, err)
	require.NoError(t, client.Close())
}
