package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalTryLock(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	release, ok, err := l.TryLock(ctx, "scan:urgent", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.TryLock(ctx, "scan:urgent", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second holder must be refused")

	other, ok, err := l.TryLock(ctx, "scan:digest", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "different names are independent")
	other()

	release()
	release() // idempotent

	again, ok, err := l.TryLock(ctx, "scan:urgent", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	again()
}
