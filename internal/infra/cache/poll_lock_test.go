package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollLock_NoRedisAlwaysAcquires(t *testing.T) {
	l := NewPollLock("", time.Second)

	unlock, ok, err := l.TryLock(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, ok)
	unlock()

	_, ok, err = l.TryLock(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.NoError(t, l.Ping(context.Background()))
	assert.NoError(t, l.Close())
}

func TestPollKey(t *testing.T) {
	assert.Equal(t, "payment:poll:42", pollKey(42))
}
