package asynq

import (
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRegisterClientSharesRedisConnection(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})

	client := registerClient(rdb)
	require.NotNil(t, client)

	// Closing a shared-connection asynq client always errors, which is why
	// the redis module owns the connection lifecycle instead.
	require.Error(t, client.Close())
	require.NoError(t, rdb.Close())
}
