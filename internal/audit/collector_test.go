package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type mockStore struct {
	mu       sync.Mutex
	batches  [][]Event
	insertFn func(ctx context.Context, events []Event) error
}

func (m *mockStore) InsertAuditEvents(ctx context.Context, events []Event) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, events)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]Event, len(events))
	copy(cp, events)
	m.batches = append(m.batches, cp)
	return nil
}

func (m *mockStore) totalInserted() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.batches {
		n += len(b)
	}
	return n
}

func sampleEvent(action string) Event {
	return New("team-1", action, "subject-1", "")
}

func TestCollector_RecordBuffers(t *testing.T) {
	ms := &mockStore{}
	c := NewCollector(ms, 100, time.Hour)

	c.Record(sampleEvent(TeamCreated))
	c.Record(sampleEvent(MemberCreated))

	c.mu.Lock()
	bufLen := len(c.buffer)
	c.mu.Unlock()

	if bufLen != 2 {
		t.Fatalf("expected buffer length 2, got %d", bufLen)
	}
	if ms.totalInserted() != 0 {
		t.Fatalf("expected 0 inserted before flush, got %d", ms.totalInserted())
	}
}

func TestCollector_FlushOnBatchSize(t *testing.T) {
	tests := []struct {
		name      string
		batchSize int
		records   int
		wantFlush int
	}{
		{"exact batch size triggers flush", 3, 3, 3},
		{"under batch size does not flush", 5, 3, 0},
		{"double batch size triggers two flushes", 2, 4, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms := &mockStore{}
			c := NewCollector(ms, tt.batchSize, time.Hour)

			for i := 0; i < tt.records; i++ {
				c.Record(sampleEvent(DocumentUploaded))
			}

			if got := ms.totalInserted(); got != tt.wantFlush {
				t.Errorf("expected %d flushed events, got %d", tt.wantFlush, got)
			}
		})
	}
}

func TestCollector_StopFlushesRemainder(t *testing.T) {
	ms := &mockStore{}
	c := NewCollector(ms, 100, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Start(ctx)

	c.Record(sampleEvent(GroupCreated))
	c.Record(sampleEvent(GroupUpdated))
	c.Record(sampleEvent(GroupDeleted))

	// Give Start a chance to run before stopping.
	time.Sleep(20 * time.Millisecond)
	c.Stop()

	if got := ms.totalInserted(); got != 3 {
		t.Fatalf("expected 3 events after Stop, got %d", got)
	}
}

func TestCollector_StopWithoutStart(t *testing.T) {
	ms := &mockStore{}
	c := NewCollector(ms, 100, time.Hour)
	c.Record(sampleEvent(TeamDeleted))
	c.Stop()
	c.Stop()

	if got := ms.totalInserted(); got != 1 {
		t.Fatalf("expected 1 event, got %d", got)
	}
}

func TestCollector_TimerFlush(t *testing.T) {
	ms := &mockStore{}
	c := NewCollector(ms, 100, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Start(ctx)

	c.Record(sampleEvent(MemberMoved))
	time.Sleep(200 * time.Millisecond)

	if got := ms.totalInserted(); got != 1 {
		t.Fatalf("expected 1 event after timer flush, got %d", got)
	}
	c.Stop()
}

func TestCollector_OnFlushReportsErrors(t *testing.T) {
	boom := errors.New("db down")
	ms := &mockStore{insertFn: func(context.Context, []Event) error { return boom }}
	c := NewCollector(ms, 1, time.Hour)

	var gotN int
	var gotErr error
	c.OnFlush = func(n int, err error) { gotN, gotErr = n, err }

	c.Record(sampleEvent(MemberDeleted))

	if gotN != 1 || !errors.Is(gotErr, boom) {
		t.Errorf("OnFlush got (%d, %v)", gotN, gotErr)
	}
}

func TestCollector_ConcurrentRecords(t *testing.T) {
	ms := &mockStore{}
	c := NewCollector(ms, 10, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Start(ctx)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Record(sampleEvent(DocumentShared))
		}()
	}
	wg.Wait()

	time.Sleep(20 * time.Millisecond)
	c.Stop()

	if got := ms.totalInserted(); got != 50 {
		t.Fatalf("expected 50 events, got %d", got)
	}
}
