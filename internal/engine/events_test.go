package engine

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krunaldodiya/tcc-manager/internal/ir"
)

func TestTraceSeqAcrossConcurrentToggles(t *testing.T) {
	f := loadedFixture(t, verifyConfig())
	clock := NewClock()
	f.engine.clock = clock

	var wg sync.WaitGroup
	for _, path := range []string{fooPath, barPath} {
		for _, svc := range ir.AllServices {
			path, svc := path, svc
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := f.engine.Toggle(context.Background(), path, svc, true)
				assert.NoError(t, err)
			}()
		}
	}
	wg.Wait()

	events := f.recorder.Events()
	require.NotEmpty(t, events)
	seen := make(map[int64]bool, len(events))
	for _, ev := range events {
		assert.False(t, seen[ev.Seq], "seq %d stamped twice", ev.Seq)
		seen[ev.Seq] = true
	}
	// four toggles: mutate, verify, settle each
	assert.Len(t, events, 12)
	assert.Equal(t, int64(12), clock.Last())
	for seq := int64(1); seq <= 12; seq++ {
		assert.True(t, seen[seq], "seq %d missing", seq)
	}
}

func TestClockStartsAtOne(t *testing.T) {
	c := NewClock()
	assert.Zero(t, c.Last())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(2), c.Last())
}

func TestRecorderKindsAndReset(t *testing.T) {
	f := loadedFixture(t, verifyConfig())

	_, err := f.engine.Toggle(context.Background(), fooPath, ir.ServiceMicrophone, true)
	require.NoError(t, err)
	assert.Equal(t, []EventKind{EventMutate, EventVerify, EventSettle}, f.recorder.Kinds())

	f.recorder.Reset()
	assert.Empty(t, f.recorder.Events())
}
