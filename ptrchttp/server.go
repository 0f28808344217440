package ptrchttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"sync"

	"github.com/peterbourgon/ptrc"
	"github.com/peterbourgon/ptrc/internal/ptrcutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is an HTTP control surface over a session. Routes:
//
//	GET  /trace     flush the running session (?stop=true to stop after)
//	POST /start     start a session, with a JSON StartRequest body
//	POST /stop      stop the running session
//	POST /metadata  add metadata, with a JSON MetadataRequest body
//	GET  /stats     session stats
//	GET  /metrics   Prometheus metrics
//	GET  /stream    server-sent events, if Stream is set
type Server struct {
	// Session to control. Required.
	Session *ptrc.Session

	// Options are the base options for every started session, e.g. a host.
	// The sink and the fields of the start request override them. Optional.
	Options ptrc.Options

	// NewSink returns the sink for a new session. Optional. By default, a
	// Chrome sink configured by the start request.
	NewSink func(StartRequest) ptrc.Sink

	// Stream, if set, receives every event of every started session, and is
	// served at /stream. Optional.
	Stream *EventStream

	// Logger for request diagnostics. Optional.
	Logger *log.Logger

	once sync.Once
	mux  *http.ServeMux
}

// NewServer returns a server controlling the session.
func NewServer(session *ptrc.Session) *Server {
	return &Server{
		Session: session,
		Options: ptrc.DefaultOptions(),
	}
}

func (s *Server) initialize() {
	if s.NewSink == nil {
		s.NewSink = defaultSink
	}

	if s.Logger == nil {
		s.Logger = log.New(io.Discard, "", 0)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(NewMetricsCollector(s.Session))

	s.mux = http.NewServeMux()
	s.mux.HandleFunc("GET /trace", s.handleTrace)
	s.mux.HandleFunc("POST /start", s.handleStart)
	s.mux.HandleFunc("POST /stop", s.handleStop)
	s.mux.HandleFunc("POST /metadata", s.handleMetadata)
	s.mux.HandleFunc("GET /stats", s.handleStats)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	if s.Stream != nil {
		s.mux.Handle("GET /stream", &StreamServer{Stream: s.Stream, Logger: s.Logger})
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.once.Do(s.initialize)
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleTrace(w http.ResponseWriter, r *http.Request) {
	var (
		stop = ptrcutil.ParseDefault(r.URL.Query().Get("stop"), strconv.ParseBool, false)
		id   = s.Session.ID()
	)

	data, err := s.Session.Bytes(stop)
	if err != nil {
		s.Logger.Printf("trace: %v", err)
		respondError(w, err, statusCode(err))
		return
	}

	s.Logger.Printf("trace: session %s, %s, stop %v", id, ptrcutil.HumanizeBytes(len(data)), stop)

	w.Header().Set("content-type", "application/json; charset=utf-8")
	if r.URL.Query().Has("download") {
		w.Header().Set("content-disposition", fmt.Sprintf("attachment; filename=%q", "trace-"+id+".json"))
	}
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if r.ContentLength != 0 {
		body := http.MaxBytesReader(w, r.Body, maxRequestBodySizeBytes)
		if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			respondError(w, fmt.Errorf("decode start request: %w", err), http.StatusBadRequest)
			return
		}
	}

	if errs := req.Validate(); len(errs) > 0 {
		respondError(w, fmt.Errorf("bad request: %s", ptrcutil.JoinErrors(errs...)), http.StatusBadRequest)
		return
	}

	sink := s.NewSink(req)
	if s.Stream != nil {
		sink = s.Stream.Sink(sink)
	}

	if err := s.Session.Start(req.Options(s.Options).WithSink(sink)); err != nil {
		s.Logger.Printf("start: %v", err)
		respondError(w, err, statusCode(err))
		return
	}

	s.Logger.Printf("start: session %s", s.Session.ID())

	respondJSON(w, http.StatusOK, s.Session.Stats())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	stats := s.Session.Stats()
	s.Session.Stop()
	s.Logger.Printf("stop: session %s", stats.ID)
	respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	var req MetadataRequest
	body := http.MaxBytesReader(w, r.Body, maxRequestBodySizeBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		respondError(w, fmt.Errorf("decode metadata request: %w", err), http.StatusBadRequest)
		return
	}

	if req.Key == "" {
		respondError(w, fmt.Errorf("bad request: key is required"), http.StatusBadRequest)
		return
	}

	if err := s.Session.AddMetadata(req.Key, req.Value); err != nil {
		respondError(w, err, statusCode(err))
		return
	}

	respondJSON(w, http.StatusOK, req)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.Session.Stats())
}

//
//
//

// StartRequest configures a session started over HTTP. Unset fields keep the
// server's base options.
type StartRequest struct {
	StackTraces     *bool `json:"stack_traces,omitempty"`
	CallerLocation  *bool `json:"caller_location,omitempty"`
	SimpleNames     *bool `json:"simple_names,omitempty"`
	SpanPoolSize    int   `json:"span_pool_size,omitempty"`
	CounterPoolSize int   `json:"counter_pool_size,omitempty"`
	Microseconds    bool  `json:"microseconds,omitempty"`
	EventLimit      int   `json:"event_limit,omitempty"`
}

// maxPoolSize bounds pool sizes requested over HTTP, as every handle is
// allocated up front.
const maxPoolSize = 100000

// Validate returns every problem with the request.
func (req StartRequest) Validate() []error {
	var errs []error
	for _, f := range []struct {
		name  string
		value int
		max   int
	}{
		{"span_pool_size", req.SpanPoolSize, maxPoolSize},
		{"counter_pool_size", req.CounterPoolSize, maxPoolSize},
		{"event_limit", req.EventLimit, 10 * maxPoolSize},
	} {
		switch {
		case f.value < 0:
			errs = append(errs, fmt.Errorf("%s (%d) can't be negative", f.name, f.value))
		case f.value > f.max:
			errs = append(errs, fmt.Errorf("%s (%d) can't be greater than %d", f.name, f.value, f.max))
		}
	}
	return errs
}

// Options returns base, modified by the request.
func (req StartRequest) Options(base ptrc.Options) ptrc.Options {
	opts := base
	if req.StackTraces != nil {
		opts = opts.WithStackTraces(*req.StackTraces)
	}
	if req.CallerLocation != nil {
		opts = opts.WithCallerLocation(*req.CallerLocation)
	}
	if req.SimpleNames != nil {
		opts = opts.WithSimpleNames(*req.SimpleNames)
	}
	if req.SpanPoolSize > 0 {
		opts = opts.WithPoolSize(ptrc.KindSpan, req.SpanPoolSize)
	}
	if req.CounterPoolSize > 0 {
		opts = opts.WithPoolSize(ptrc.KindCounter, req.CounterPoolSize)
	}
	return opts
}

func defaultSink(req StartRequest) ptrc.Sink {
	var opts []ptrc.ChromeOption
	if req.Microseconds {
		opts = append(opts, ptrc.WithMicroseconds())
	}
	if req.EventLimit > 0 {
		opts = append(opts, ptrc.WithEventLimit(req.EventLimit))
	}
	return ptrc.NewChromeSink(opts...)
}

// MetadataRequest adds a single metadata entry to the running session.
type MetadataRequest struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}
