// Package framestore provides the single-slot, latest-wins frame exchange
// between one producer and any number of stream readers.
//
// The store holds exactly one logical value: absent, or the most recently
// published frame. There is no queue; a publish replaces whatever was there.
// Readers can never fall behind by more than one publish interval, and a
// slow reader never holds up the producer.
package framestore

import (
	"context"
	"image"
	"sync"
	"time"
)

// Frame is one published frame. Frames are immutable after publish: the
// producer hands the image over and must not touch it again, so readers
// can encode it without holding any lock.
type Frame struct {
	Image     image.Image
	Seq       uint64
	Timestamp time.Time
}

// Store holds the most recently published frame for one feed.
//
// Single writer, any number of readers. The critical section on every
// operation is a pointer swap, never an encode or a network write.
type Store struct {
	mu    sync.Mutex
	frame *Frame
	seq   uint64

	ready     chan struct{}
	readyOnce sync.Once
}

// New creates an empty store. Snapshot reports absent until the first
// publish.
func New() *Store {
	return &Store{ready: make(chan struct{})}
}

// Publish replaces the current frame unconditionally and returns the
// assigned sequence number. It never blocks on readers: waiters are woken
// by a channel close, not by handing the frame to each of them.
func (s *Store) Publish(img image.Image, ts time.Time) uint64 {
	s.mu.Lock()
	s.seq++
	f := &Frame{Image: img, Seq: s.seq, Timestamp: ts}
	s.frame = f
	s.mu.Unlock()

	s.readyOnce.Do(func() { close(s.ready) })
	return f.Seq
}

// Snapshot returns the current frame without consuming it. ok is false
// before the first publish. Repeated calls may return the same frame.
func (s *Store) Snapshot() (*Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frame == nil {
		return nil, false
	}
	return s.frame, true
}

// Wait blocks until at least one frame has been published, then returns
// the current frame. It returns ctx.Err() if the context ends first.
func (s *Store) Wait(ctx context.Context) (*Frame, error) {
	select {
	case <-s.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	f, _ := s.Snapshot()
	return f, nil
}

// Seq returns the sequence number of the latest publish, 0 before the
// first one.
func (s *Store) Seq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}
