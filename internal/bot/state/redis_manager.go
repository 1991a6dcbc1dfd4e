package state

import (
	"context"
	"fmt"
	"time"

	"github.com/mealsnap/food-diary/internal/logger"
	"github.com/redis/go-redis/v9"
)

// stateTTL bounds how long an abandoned conversation state survives
const stateTTL = 24 * time.Hour

// RedisManager keeps bot UI state in Redis so it survives bot restarts.
// Diary data itself never goes here.
type RedisManager struct {
	client *redis.Client
}

var _ StateManager = (*RedisManager)(nil)

// NewRedisManager creates a new Redis-based state manager
func NewRedisManager(redisHost, redisPort string) (*RedisManager, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", redisHost, redisPort),
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return newRedisManager(client), nil
}

func newRedisManager(client *redis.Client) *RedisManager {
	return &RedisManager{client: client}
}

func stateKey(userID int64) string { return fmt.Sprintf("user:%d:state", userID) }

func tempKey(userID int64) string { return fmt.Sprintf("user:%d:temp", userID) }

// SetUserState sets the state for a user with TTL
func (m *RedisManager) SetUserState(userID int64, state string) {
	ctx := context.Background()
	if err := m.client.Set(ctx, stateKey(userID), state, stateTTL).Err(); err != nil {
		logger.Warn("Failed to save user state", "user_id", userID, "error", err)
	}
}

// GetUserState gets the state for a user
func (m *RedisManager) GetUserState(userID int64) string {
	ctx := context.Background()
	result, err := m.client.Get(ctx, stateKey(userID)).Result()
	if err != nil {
		if err != redis.Nil {
			logger.Warn("Failed to read user state", "user_id", userID, "error", err)
		}
		return None
	}
	return result
}

// ClearUserState clears the state for a user
func (m *RedisManager) ClearUserState(userID int64) {
	m.client.Del(context.Background(), stateKey(userID))
}

// SetTempData sets temporary data for a user in a hash that shares the state TTL
func (m *RedisManager) SetTempData(userID int64, key string, value string) {
	ctx := context.Background()
	pipe := m.client.TxPipeline()
	pipe.HSet(ctx, tempKey(userID), key, value)
	pipe.Expire(ctx, tempKey(userID), stateTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Warn("Failed to save temp data", "user_id", userID, "key", key, "error", err)
	}
}

// GetTempData gets temporary data for a user
func (m *RedisManager) GetTempData(userID int64, key string) (string, bool) {
	value, err := m.client.HGet(context.Background(), tempKey(userID), key).Result()
	if err != nil {
		return "", false
	}
	return value, true
}

// ClearTempData clears all temporary data for a user
func (m *RedisManager) ClearTempData(userID int64) {
	m.client.Del(context.Background(), tempKey(userID))
}

// Close closes the Redis connection
func (m *RedisManager) Close() error {
	return m.client.Close()
}
