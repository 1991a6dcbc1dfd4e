package state

import (
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestRedisManager_UnreachableDegrades(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	m := newRedisManager(client)
	defer m.Close()

	m.SetUserState(1, Chatting)
	assert.Equal(t, None, m.GetUserState(1))

	m.SetTempData(1, KeySlot, "NOON")
	_, ok := m.GetTempData(1, KeySlot)
	assert.False(t, ok)
}

func TestNewRedisManager_FailsWithoutServer(t *testing.T) {
	_, err := NewRedisManager("127.0.0.1", "1")
	assert.Error(t, err)
}
