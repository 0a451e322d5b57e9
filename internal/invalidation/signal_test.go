package invalidation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSignal(t *testing.T) {
	s := New("E1", " E2 ", "E1", "")
	assert.Equal(t, []string{"E1", "E2"}, s.ExternalIDs)
	assert.True(t, s.Contains("E2"))

	merged := s.Merge(New("E3", "E1"), Signal{})
	assert.Equal(t, []string{"E1", "E2", "E3"}, merged.ExternalIDs)
	assert.Equal(t, []string{"E1", "E2"}, s.ExternalIDs, "merge does not mutate the receiver")

	empty := New()
	assert.True(t, empty.IsEmpty())
	assert.NotNil(t, empty.ExternalIDs, "serializes as [] rather than null")
}

type recordingPublisher struct {
	mu      sync.Mutex
	signals []Signal
	err     error
}

func (p *recordingPublisher) Publish(_ context.Context, signal Signal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signals = append(p.signals, signal)
	return p.err
}

func TestDispatcher(t *testing.T) {
	t.Run("fans out to every publisher despite failures", func(t *testing.T) {
		failing := &recordingPublisher{err: errors.New("broker down")}
		ok := &recordingPublisher{}
		d := NewDispatcher(nil, time.Second, failing, nil, ok)

		d.Dispatch(context.Background(), New("E1"))

		assert.Len(t, failing.signals, 1)
		assert.Len(t, ok.signals, 1)
	})

	t.Run("skips empty signals", func(t *testing.T) {
		p := &recordingPublisher{}
		NewDispatcher(nil, 0, p).Dispatch(context.Background(), New())
		assert.Empty(t, p.signals)
	})

	t.Run("nil dispatcher is a no-op", func(t *testing.T) {
		var d *Dispatcher
		assert.NotPanics(t, func() { d.Dispatch(context.Background(), New("E1")) })
	})

	t.Run("publishes even after the request context is cancelled", func(t *testing.T) {
		p := &recordingPublisher{}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		NewDispatcher(nil, time.Second, p).Dispatch(ctx, New("E1"))
		assert.Len(t, p.signals, 1)
	})
}
