package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jwalitptl/dentallab-api/internal/model"
)

// RecordingPusher captures pushed events. When Err is set every send fails.
type RecordingPusher struct {
	mu     sync.Mutex
	Err    error
	Events []model.PushEvent
}

func (p *RecordingPusher) Send(_ context.Context, event model.PushEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.Events = append(p.Events, event)
	return nil
}

func (p *RecordingPusher) Sent() []model.PushEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.PushEvent(nil), p.Events...)
}

// MemoryBlobStore keeps uploaded blobs in memory.
type MemoryBlobStore struct {
	mu        sync.Mutex
	Blobs     map[string][]byte
	RemoveErr error
}

func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{Blobs: map[string][]byte{}}
}

func (s *MemoryBlobStore) Upload(_ context.Context, key, _ string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Blobs[key] = append([]byte(nil), data...)
	return "memory://" + key, nil
}

func (s *MemoryBlobStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.RemoveErr != nil {
		return s.RemoveErr
	}
	if _, ok := s.Blobs[key]; !ok {
		return fmt.Errorf("blob %s not found", key)
	}
	delete(s.Blobs, key)
	return nil
}

func (s *MemoryBlobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Blobs)
}

// RecordingMailer captures invite emails.
type RecordingMailer struct {
	mu   sync.Mutex
	Fail bool
	Sent []string
}

func (m *RecordingMailer) SendInvite(_ context.Context, to, _, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return errors.New("smtp unavailable")
	}
	m.Sent = append(m.Sent, to+" "+link)
	return nil
}

// Clock is a settable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
