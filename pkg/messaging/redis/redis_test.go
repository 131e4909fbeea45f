package redis

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewRedisBroker_InvalidURL(t *testing.T) {
	logger := zerolog.Nop()
	_, err := NewRedisBroker(context.Background(), Config{URL: "http://not-redis"}, &logger)
	assert.ErrorContains(t, err, "failed to parse Redis URL")
}

func TestNewRedisBroker_Unreachable(t *testing.T) {
	logger := zerolog.Nop()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, err := NewRedisBroker(ctx, Config{URL: "redis://127.0.0.1:1/0"}, &logger)
	assert.ErrorContains(t, err, "failed to connect to Redis")
}
