package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_SetGetInvalidate(t *testing.T) {
	ctx := context.Background()
	l := NewLocal(time.Minute)

	expected := testStruct{Name: "Bob", Age: 41}
	require.NoError(t, l.Set(ctx, "k", expected, 0))

	var got testStruct
	found, err := l.Get(ctx, "k", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, expected, got)

	got.Name = "changed"
	var again testStruct
	_, err = l.Get(ctx, "k", &again)
	require.NoError(t, err)
	assert.Equal(t, "Bob", again.Name)

	require.NoError(t, l.Invalidate(ctx, "k"))
	found, err = l.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestLocal_Expiration(t *testing.T) {
	ctx := context.Background()
	l := NewLocal(time.Minute)

	require.NoError(t, l.Set(ctx, "k", 1, 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	var out int
	found, err := l.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestLocal_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out int
	_, err := NewLocal(0).Get(ctx, "k", &out)
	assert.ErrorIs(t, err, context.Canceled)
}
