package ptrchttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bernerdschaefer/eventsource"
	"github.com/peterbourgon/ptrc"
	"github.com/peterbourgon/ptrc/internal/ptrcpubsub"
	"github.com/peterbourgon/ptrc/internal/ptrcutil"
)

// EventStream publishes the events captured by its sinks to subscribers. An
// event stream outlives individual sessions: wrap the sink of every new
// session with [EventStream.Sink].
type EventStream struct {
	broker *ptrcpubsub.Broker[ptrc.Event]
}

// StreamStats count the events delivered to a single subscriber.
type StreamStats = ptrcpubsub.Stats

// NewEventStream returns an event stream with no subscribers.
func NewEventStream() *EventStream {
	return &EventStream{
		broker: ptrcpubsub.NewBroker[ptrc.Event](),
	}
}

// Sink returns a sink that forwards everything to next, and also publishes
// every event to the stream.
func (es *EventStream) Sink(next ptrc.Sink) *StreamSink {
	return &StreamSink{next: next, broker: es.broker}
}

// Subscribe sends published events that pass allow to ch, until the context is
// canceled. Events are dropped if ch is full. Subscribe blocks.
func (es *EventStream) Subscribe(ctx context.Context, allow func(ptrc.Event) bool, ch chan<- ptrc.Event) (StreamStats, error) {
	return es.broker.Subscribe(ctx, allow, ch)
}

// Active returns true if the stream has at least one subscriber.
func (es *EventStream) Active() bool {
	return es.broker.Active()
}

// Stats returns the current stats for the subscription of ch.
func (es *EventStream) Stats(ch chan<- ptrc.Event) (StreamStats, error) {
	return es.broker.Stats(ch)
}

//
//
//

// StreamSink decorates a sink, publishing every event it receives between
// Start and Stop to an event stream. Events that arrive after Stop are
// dropped by the decorated sink, and aren't published. It supports
// serialization if the decorated sink does.
type StreamSink struct {
	next    ptrc.Sink
	broker  *ptrcpubsub.Broker[ptrc.Event]
	running atomic.Bool
}

var _ ptrc.StreamSink = (*StreamSink)(nil)

// Start implements ptrc.Sink.
func (s *StreamSink) Start() {
	s.next.Start()
	s.running.Store(true)
}

// Stop implements ptrc.Sink.
func (s *StreamSink) Stop() {
	s.running.Store(false)
	s.next.Stop()
}

// AddMetadata implements ptrc.Sink.
func (s *StreamSink) AddMetadata(key string, value any) error {
	return s.next.AddMetadata(key, value)
}

// AddEvent implements ptrc.Sink.
func (s *StreamSink) AddEvent(ev ptrc.Event) {
	s.next.AddEvent(ev)
	if s.running.Load() {
		s.broker.Publish(ev)
	}
}

// WriteStream implements ptrc.StreamSink.
func (s *StreamSink) WriteStream(w io.Writer) error {
	ss, ok := s.next.(ptrc.StreamSink)
	if !ok {
		return fmt.Errorf("%w (%T)", ptrc.ErrNotSupported, s.next)
	}
	return ss.WriteStream(w)
}

//
//
//

// StreamFilter selects events from a stream. Thread naming events always
// pass, so that consumers can label threads.
type StreamFilter struct {
	// Categories, if non-empty, passes only events with at least one of the
	// given categories.
	Categories []string `json:"categories,omitempty"`

	// Phases, if non-empty, passes only events with one of the given Chrome
	// phase codes, e.g. "X" for spans.
	Phases []string `json:"phases,omitempty"`
}

// Allow returns true if the event passes the filter.
func (f StreamFilter) Allow(ev ptrc.Event) bool {
	if ev.Kind() == ptrc.KindMeta {
		return true
	}

	if len(f.Phases) > 0 && !contains(f.Phases, ev.Kind().Phase()) {
		return false
	}

	if len(f.Categories) > 0 {
		var match bool
		for _, c := range ev.Categories() {
			if contains(f.Categories, c) {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}

	return true
}

func (f StreamFilter) encode(query url.Values) {
	for _, c := range f.Categories {
		query.Add("cat", c)
	}
	for _, ph := range f.Phases {
		query.Add("ph", ph)
	}
}

func parseStreamFilter(query url.Values) StreamFilter {
	return StreamFilter{
		Categories: query["cat"],
		Phases:     query["ph"],
	}
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

//
//
//

// StreamServer serves an event stream as server-sent events. Every captured
// event is sent as an "event" with a JSON-encoded [ptrc.ChromeEvent] as data.
// Stream stats are sent periodically as "stats".
type StreamServer struct {
	// Stream to serve. Required.
	Stream *EventStream

	// Logger for diagnostic messages. Optional.
	Logger *log.Logger
}

// ServeHTTP implements http.Handler. Requests must Accept: text/event-stream.
//
// Query parameters: cat and ph (repeatable) filter events, micros sends times
// in microseconds, sendbuf sets the per-subscriber buffer size, and stats sets
// the stats reporting interval.
func (s *StreamServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := s.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	if !RequestExplicitlyAccepts(r, "text/event-stream") {
		err := fmt.Errorf("invalid request Accept header (%s)", r.Header.Get("accept"))
		respondError(w, err, http.StatusBadRequest)
		return
	}

	var (
		ctx     = r.Context()
		query   = r.URL.Query()
		filter  = parseStreamFilter(query)
		micros  = query.Has("micros")
		stats   = ptrcutil.ParseRange(query.Get("stats"), time.ParseDuration, time.Second, 10*time.Second, time.Minute)
		sendbuf = ptrcutil.ParseRange(query.Get("sendbuf"), strconv.Atoi, 0, 100, 100000)
		eventc  = make(chan ptrc.Event, sendbuf)
		donec   = make(chan struct{})
	)

	logger.Printf("stream: %s connected (filter %+v, sendbuf %d)", r.RemoteAddr, filter, sendbuf)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		defer close(donec)
		stats, err := s.Stream.Subscribe(ctx, filter.Allow, eventc)
		logger.Printf("stream: %s disconnected (%s, %v)", r.RemoteAddr, stats, err)
	}()
	defer func() {
		cancel()
		<-donec
	}()

	eventsource.Handler(func(lastID string, encoder *eventsource.Encoder, stop <-chan bool) {
		ticker := time.NewTicker(stats)
		defer ticker.Stop()

		encode := func(eventType string, v any) {
			data, err := json.Marshal(v)
			if err != nil {
				logger.Printf("stream: marshal %s: %v", eventType, err)
				return
			}
			if err := encoder.Encode(eventsource.Event{Type: eventType, Data: data}); err != nil {
				logger.Printf("stream: encode %s: %v", eventType, err)
			}
		}

		encode("init", map[string]any{
			"filter":  filter,
			"sendbuf": cap(eventc),
		})

		for {
			select {
			case ev := <-eventc:
				encode("event", ptrc.ChromeEventFrom(ev, micros))

			case <-ticker.C:
				stats, err := s.Stream.Stats(eventc)
				if err != nil {
					logger.Printf("stream: get stats: %v", err)
					continue
				}
				encode("stats", stats)

			case <-donec:
				return

			case <-stop:
				cancel()
				return

			case <-ctx.Done():
				return
			}
		}
	}).ServeHTTP(w, r)
}

//
//
//

// StreamClient consumes the events served by a stream server.
type StreamClient struct {
	// URI of the remote stream server. Required.
	URI string

	// Filter sent to the server. Optional.
	Filter StreamFilter

	// SendBuffer used by the remote stream server. Min 0, max 100k.
	SendBuffer int

	// Microseconds requests times in microseconds rather than nanoseconds.
	Microseconds bool

	// OnRead is called for every stream event received by the client.
	// Implementations must not block and must not modify event data.
	OnRead func(ctx context.Context, eventType string, eventData []byte)

	// RetryInterval between reconnect attempts. Default 3s, min 1s, max 60s.
	RetryInterval time.Duration
}

func (c *StreamClient) initialize() {
	if c.URI != "" && !strings.HasPrefix(c.URI, "http") {
		c.URI = "http://" + c.URI
	}

	if min, max := 0, 100000; c.SendBuffer < min {
		c.SendBuffer = min
	} else if c.SendBuffer > max {
		c.SendBuffer = max
	}

	if c.OnRead == nil {
		c.OnRead = func(ctx context.Context, eventType string, eventData []byte) {}
	}

	if def, min, max := 3*time.Second, 1*time.Second, 60*time.Second; c.RetryInterval == 0 {
		c.RetryInterval = def
	} else if c.RetryInterval < min {
		c.RetryInterval = min
	} else if c.RetryInterval > max {
		c.RetryInterval = max
	}
}

// Stream events from the remote server to the provided channel. The stream
// stops when the context is canceled, or a non-recoverable error occurs.
func (c *StreamClient) Stream(ctx context.Context, ch chan<- ptrc.ChromeEvent) error {
	c.initialize()

	// The request deliberately has no context: the event source treats
	// context cancelation as a recoverable error, and re-uses the request
	// over reconnects.
	uri, err := url.Parse(c.URI)
	if err != nil {
		return fmt.Errorf("parse URI: %w", err)
	}

	query := uri.Query()
	c.Filter.encode(query)
	if c.SendBuffer > 0 {
		query.Set("sendbuf", strconv.Itoa(c.SendBuffer))
	}
	if c.Microseconds {
		query.Set("micros", "true")
	}
	uri.RawQuery = query.Encode()

	req, err := http.NewRequest("GET", uri.String(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	es := eventsource.New(req, c.RetryInterval)
	go func() {
		<-ctx.Done()
		es.Close()
	}()

	for {
		ev, err := es.Read()
		if errors.Is(err, eventsource.ErrClosed) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read server-sent event: %w", err)
		}

		c.OnRead(ctx, ev.Type, ev.Data)

		if ev.Type != "event" {
			continue
		}

		var cev ptrc.ChromeEvent
		if err := json.Unmarshal(ev.Data, &cev); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}

		select {
		case ch <- cev:
		case <-ctx.Done():
			return nil
		}
	}
}
