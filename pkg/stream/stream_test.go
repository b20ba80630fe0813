package stream

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sp1nlock/legwork/pkg/results"
)

type fakeTransport struct {
	mu     sync.Mutex
	ch     chan Event
	starts int
	stops  int
}

func (f *fakeTransport) Start(ctx context.Context, subject string) (<-chan Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	f.ch = make(chan Event, 16)
	return f.ch, nil
}

func (f *fakeTransport) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	if f.ch != nil {
		close(f.ch)
		f.ch = nil
	}
}

func (f *fakeTransport) emit(ev Event) {
	f.mu.Lock()
	ch := f.ch
	f.mu.Unlock()
	ch <- ev
}

type recordingSink struct {
	mu       sync.Mutex
	records  []results.Record
	found    [][]results.Record
	stops    []error
	complete chan struct{}
	stopped  chan struct{}
}

func newRecordingSink() *recordingSink {
	return &recordingSink{
		complete: make(chan struct{}, 4),
		stopped:  make(chan struct{}, 4),
	}
}

func (s *recordingSink) UpsertResult(r results.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
}

func (s *recordingSink) SearchComplete(found []results.Record) {
	s.mu.Lock()
	s.found = append(s.found, found)
	s.mu.Unlock()
	s.complete <- struct{}{}
}

func (s *recordingSink) SearchStopped(cause error) {
	s.mu.Lock()
	s.stops = append(s.stops, cause)
	s.mu.Unlock()
	s.stopped <- struct{}{}
}

func waitSignal(t *testing.T, ch chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func TestDecodeSiteResult(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		status  results.Status
		wantErr bool
	}{
		{
			"found result",
			`{"result":{"site":"GitHub","url":"https://github.com/alice","found":true,"status_code":200,"latency_ms":81.5,"bio":"dev"}}`,
			results.StatusFound,
			false,
		},
		{
			"state mapped",
			`{"result":{"site":"Reddit","found":false,"state":"rate_limited"}}`,
			results.StatusRateLimited,
			false,
		},
		{
			"no state defaults unknown",
			`{"result":{"site":"X","found":false}}`,
			results.StatusUnknown,
			false,
		},
		{
			"unknown state string",
			`{"result":{"site":"X","state":"weird"}}`,
			results.StatusUnknown,
			false,
		},
		{"missing result", `{"nope":1}`, "", true},
		{"missing site", `{"result":{"url":"https://x"}}`, "", true},
		{"not json", `{"result":`, "", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r, err := DecodeSiteResult([]byte(tc.payload))
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected decode error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if r.Status != tc.status {
				t.Fatalf("status = %s, want %s", r.Status, tc.status)
			}
		})
	}
}

func TestDecodeSearchComplete(t *testing.T) {
	payload := `{"summary":{"total":40},"found_profiles":[
		{"site":"GitHub","url":"https://github.com/alice","bio":"dev"},
		{"site":"Reddit","url":"https://reddit.com/user/alice"}
	]}`
	found, err := DecodeSearchComplete([]byte(payload))
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 2 {
		t.Fatalf("expected 2 profiles, got %d", len(found))
	}
	for _, r := range found {
		if r.Status != results.StatusFound {
			t.Fatalf("summary profile not marked found: %+v", r)
		}
	}

	if _, err := DecodeSearchComplete([]byte(`{"summary":{}}`)); err == nil {
		t.Fatal("missing found_profiles must error")
	}
}

func TestIngestorForwardsResults(t *testing.T) {
	transport := &fakeTransport{}
	sink := newRecordingSink()
	in := NewIngestor(transport, sink)

	if err := in.Start(context.Background(), "alice"); err != nil {
		t.Fatal(err)
	}
	transport.emit(Event{Kind: EventSiteResult, Data: []byte(`{"result":{"site":"GitHub","found":true}}`)})
	transport.emit(Event{Kind: EventSiteResult, Data: []byte(`not json at all`)})
	transport.emit(Event{Kind: EventSiteResult, Data: []byte(`{"result":{"site":"Reddit","state":"not_found"}}`)})
	transport.emit(Event{Kind: EventSearchComplete, Data: []byte(`{"found_profiles":[{"site":"GitHub"}]}`)})

	waitSignal(t, sink.complete, "search completion")

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.records) != 2 {
		t.Fatalf("expected 2 forwarded records (malformed dropped), got %d", len(sink.records))
	}
	if len(sink.found) != 1 || len(sink.found[0]) != 1 {
		t.Fatalf("unexpected found set: %v", sink.found)
	}
	if len(sink.stops) != 0 {
		t.Fatalf("completion must not fire SearchStopped: %v", sink.stops)
	}
}

func TestIngestorStopSweepsOnce(t *testing.T) {
	transport := &fakeTransport{}
	sink := newRecordingSink()
	in := NewIngestor(transport, sink)

	if err := in.Start(context.Background(), "alice"); err != nil {
		t.Fatal(err)
	}
	in.Stop()
	waitSignal(t, sink.stopped, "stop")

	if in.Active() {
		t.Fatal("ingestor still active after Stop")
	}

	// Idempotent: stopping again is a no-op beyond the sweep callback.
	in.Stop()
	waitSignal(t, sink.stopped, "second stop")

	sink.mu.Lock()
	defer sink.mu.Unlock()
	for _, cause := range sink.stops {
		if cause != nil {
			t.Fatalf("user stop carried a cause: %v", cause)
		}
	}
}

func TestIngestorTransportDrop(t *testing.T) {
	transport := &fakeTransport{}
	sink := newRecordingSink()
	in := NewIngestor(transport, sink)

	if err := in.Start(context.Background(), "alice"); err != nil {
		t.Fatal(err)
	}
	// Simulate the stream dying without a search_complete.
	transport.Stop()
	waitSignal(t, sink.stopped, "transport drop")

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.stops) != 1 || sink.stops[0] == nil {
		t.Fatalf("transport drop must surface a cause: %v", sink.stops)
	}
}

func TestIngestorRestartReplacesStream(t *testing.T) {
	transport := &fakeTransport{}
	sink := newRecordingSink()
	in := NewIngestor(transport, sink)

	if err := in.Start(context.Background(), "alice"); err != nil {
		t.Fatal(err)
	}
	if err := in.Start(context.Background(), "bob"); err != nil {
		t.Fatal(err)
	}

	transport.mu.Lock()
	starts := transport.starts
	transport.mu.Unlock()
	if starts != 2 {
		t.Fatalf("expected 2 starts, got %d", starts)
	}
	if !in.Active() {
		t.Fatal("second stream should be active")
	}

	// Replacement closes the prior stream silently: no stop sweep fires.
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.stops) != 0 {
		t.Fatalf("replacing a stream fired SearchStopped: %v", sink.stops)
	}
}
