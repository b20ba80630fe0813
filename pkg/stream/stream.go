// Package stream consumes the scanner's per-platform event stream for a
// search subject and feeds decoded results into the session. The transport
// is abstracted so the SSE client can be swapped for a socket or queue
// without touching ingestion logic.
package stream

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	retryablehttp "github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"

	"github.com/sp1nlock/legwork/internal/utils"
	"github.com/sp1nlock/legwork/pkg/results"
)

// Event kinds emitted by the scanner.
const (
	EventSiteResult     = "site_result"
	EventSearchComplete = "search_complete"
)

// Event is one raw message off the wire.
type Event struct {
	Kind string
	Data []byte
}

// Transport opens at most one event stream per subject search.
type Transport interface {
	// Start opens a stream for the subject. Starting while a stream is
	// open closes the prior one first. The returned channel is closed
	// when the stream ends for any reason.
	Start(ctx context.Context, subject string) (<-chan Event, error)
	// Stop closes the current stream, if any.
	Stop()
}

// Sink receives decoded stream events. Implementations serialize their own
// state; the ingestor guarantees calls arrive one at a time.
type Sink interface {
	// UpsertResult delivers one probe outcome.
	UpsertResult(r results.Record)
	// SearchComplete delivers the authoritative found set; the stream is
	// closed right after.
	SearchComplete(found []results.Record)
	// SearchStopped fires on explicit stop or transport failure. cause is
	// nil for a user-initiated stop. The sink must resolve any entries
	// still checking.
	SearchStopped(cause error)
}

// SSETransport reads text/event-stream responses from the scanner host.
type SSETransport struct {
	Host   string
	Client *retryablehttp.Client

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewSSETransport builds a transport for the given scanner base URL. The
// retry client only retries the initial connect; an established stream
// that drops is surfaced as a transport error instead.
func NewSSETransport(host string) *SSETransport {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.Logger = nil
	client.HTTPClient.Timeout = 0 // the stream stays open indefinitely
	return &SSETransport{Host: strings.TrimRight(host, "/"), Client: client}
}

func (t *SSETransport) Start(ctx context.Context, subject string) (<-chan Event, error) {
	t.Stop()

	ctx, cancel := context.WithCancel(ctx)
	streamURL := fmt.Sprintf("%s/api/scan/stream?username=%s", t.Host, url.QueryEscape(subject))
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := t.Client.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("scanner stream returned HTTP %d", resp.StatusCode)
	}

	t.mu.Lock()
	t.cancel = cancel
	t.mu.Unlock()

	ch := make(chan Event)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		var kind string
		var data strings.Builder
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case line == "":
				if kind != "" || data.Len() > 0 {
					select {
					case ch <- Event{Kind: kind, Data: []byte(data.String())}:
					case <-ctx.Done():
						return
					}
				}
				kind = ""
				data.Reset()
			case strings.HasPrefix(line, "event:"):
				kind = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			case strings.HasPrefix(line, "data:"):
				data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
			case strings.HasPrefix(line, ":"):
				// keep-alive comment
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			utils.Log.Warnf("scanner stream read error: %v", err)
		}
	}()
	return ch, nil
}

func (t *SSETransport) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}

// Ingestor drives one search's stream consumption: it decodes events and
// forwards them to the sink. At most one stream is active; starting a new
// search stops the previous one first.
type Ingestor struct {
	transport Transport
	sink      Sink

	mu     sync.Mutex
	active bool
	done   chan struct{}
}

func NewIngestor(transport Transport, sink Sink) *Ingestor {
	return &Ingestor{transport: transport, sink: sink}
}

// Active reports whether a stream is currently open.
func (in *Ingestor) Active() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.active
}

// Start opens a stream for the subject, replacing any prior one. The
// replaced stream is closed silently: the caller reseeds its state for the
// new subject, so no stop sweep fires.
func (in *Ingestor) Start(ctx context.Context, subject string) error {
	if in.markInactive() {
		in.transport.Stop()
		in.waitConsumer()
	}

	ch, err := in.transport.Start(ctx, subject)
	if err != nil {
		return fmt.Errorf("opening scanner stream: %w", err)
	}

	done := make(chan struct{})
	in.mu.Lock()
	in.active = true
	in.done = done
	in.mu.Unlock()

	go in.consume(ch, done)
	return nil
}

func (in *Ingestor) consume(ch <-chan Event, done chan struct{}) {
	defer close(done)
	for ev := range ch {
		switch ev.Kind {
		case EventSiteResult:
			record, err := DecodeSiteResult(ev.Data)
			if err != nil {
				utils.Log.Warnf("dropping malformed site_result: %v", err)
				continue
			}
			in.sink.UpsertResult(record)
		case EventSearchComplete:
			found, err := DecodeSearchComplete(ev.Data)
			if err != nil {
				utils.Log.Warnf("dropping malformed search_complete: %v", err)
				continue
			}
			in.markInactive()
			in.transport.Stop()
			in.sink.SearchComplete(found)
			return
		default:
			utils.Log.Debugf("ignoring unknown stream event %q", ev.Kind)
		}
	}
	// Channel closed without search_complete: the transport dropped.
	if in.markInactive() {
		in.transport.Stop()
		in.sink.SearchStopped(fmt.Errorf("scanner stream closed unexpectedly"))
	}
}

// Stop closes the stream if open and always triggers the sink's sweep.
// Idempotent: with no open stream it is a no-op beyond the sweep.
func (in *Ingestor) Stop() {
	wasActive := in.markInactive()
	in.transport.Stop()
	if wasActive {
		in.waitConsumer()
	}
	in.sink.SearchStopped(nil)
}

func (in *Ingestor) markInactive() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	was := in.active
	in.active = false
	return was
}

func (in *Ingestor) waitConsumer() {
	in.mu.Lock()
	done := in.done
	in.mu.Unlock()
	if done != nil {
		<-done
	}
}

// DecodeSiteResult decodes a site_result payload into a Record. found=true
// maps to status found; otherwise the wire state string is mapped onto the
// status enum, defaulting to unknown.
func DecodeSiteResult(data []byte) (results.Record, error) {
	if !gjson.ValidBytes(data) {
		return results.Record{}, fmt.Errorf("invalid JSON")
	}
	result := gjson.GetBytes(data, "result")
	if !result.Exists() {
		return results.Record{}, fmt.Errorf("missing result object")
	}
	return decodeRecord(result)
}

// DecodeSearchComplete decodes the terminal summary event's found_profiles
// list. Items share the site_result shape minus the found flag; they are
// found by definition.
func DecodeSearchComplete(data []byte) ([]results.Record, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid JSON")
	}
	items := gjson.GetBytes(data, "found_profiles")
	if !items.Exists() || !items.IsArray() {
		return nil, fmt.Errorf("missing found_profiles array")
	}
	var out []results.Record
	var firstErr error
	items.ForEach(func(_, item gjson.Result) bool {
		r, err := decodeRecord(item)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return true
		}
		r.Status = results.StatusFound
		out = append(out, r)
		return true
	})
	if len(out) == 0 && firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

func decodeRecord(item gjson.Result) (results.Record, error) {
	site := item.Get("site").String()
	if strings.TrimSpace(site) == "" {
		return results.Record{}, fmt.Errorf("missing site name")
	}

	status := results.StatusUnknown
	if item.Get("found").Bool() {
		status = results.StatusFound
	} else if state := item.Get("state"); state.Exists() {
		status = results.ParseStatus(state.String())
	}

	return results.Record{
		Platform:    site,
		URL:         item.Get("url").String(),
		Status:      status,
		StatusCode:  int(item.Get("status_code").Int()),
		ViaProxy:    item.Get("via_proxy").Bool(),
		LatencyMs:   item.Get("latency_ms").Float(),
		Reason:      item.Get("reason").String(),
		DisplayName: item.Get("display_name").String(),
		Bio:         item.Get("bio").String(),
		Avatar:      item.Get("avatar").String(),
	}, nil
}
