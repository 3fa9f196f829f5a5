package ratelimiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ZeroIsUnlimited(t *testing.T) {
	l := New(0)
	assert.True(t, l.Unlimited())
	require.NoError(t, l.WaitN(context.Background(), 1<<30))
}

func TestNew_LimitsThroughput(t *testing.T) {
	l := New(1024)
	assert.False(t, l.Unlimited())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, l.WaitN(ctx, 1024))
}

func TestWaitN_RespectsCancellation(t *testing.T) {
	l := New(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := l.WaitN(ctx, 10_000_000)
	assert.Error(t, err)
}
