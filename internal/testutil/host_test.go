package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krunaldodiya/tcc-manager/internal/ir"
)

func TestFakeHostLag(t *testing.T) {
	h := NewFakeHost()
	h.Install("/Applications/Foo.app", "com.example.foo")
	h.SetLag(2)
	ctx := context.Background()
	cam := []ir.ServiceKind{ir.ServiceCamera}

	require.NoError(t, h.Grant(ctx, "/Applications/Foo.app", ir.ServiceCamera))

	for i := 0; i < 2; i++ {
		_, state, err := h.Inspect(ctx, "/Applications/Foo.app", cam)
		require.NoError(t, err)
		assert.False(t, state.Camera, "read %d still stale", i+1)
	}
	_, state, err := h.Inspect(ctx, "/Applications/Foo.app", cam)
	require.NoError(t, err)
	assert.True(t, state.Camera)
}

func TestFakeHostNeverVisible(t *testing.T) {
	h := NewFakeHost()
	h.Install("/Applications/Foo.app", "com.example.foo")
	h.SetLag(-1)
	ctx := context.Background()

	require.NoError(t, h.Grant(ctx, "/Applications/Foo.app", ir.ServiceMicrophone))
	for i := 0; i < 5; i++ {
		_, state, _ := h.Inspect(ctx, "/Applications/Foo.app", ir.AllServices)
		assert.False(t, state.Microphone)
	}
	assert.Equal(t, 1, h.Mutations())
	assert.Equal(t, 5, h.Inspects())
}

func TestFakeHostDiscover(t *testing.T) {
	h := NewFakeHost()
	_, err := h.Discover(context.Background())
	require.ErrorIs(t, err, ErrNothingFound)

	h.Install("/Applications/B.app", "b")
	h.Install("/Applications/A.app", "")
	paths, err := h.Discover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"/Applications/A.app", "/Applications/B.app"}, paths)

	_, ok := h.Resolve(context.Background(), "/Applications/A.app")
	assert.False(t, ok)
}
