// Package introspection serves the node's observability HTTP endpoints:
//
//	GET /state                    current global state as JSON
//	GET /actions?cursor=N&limit=M action/state pairs replayed from the journal
//	GET /metrics                  Prometheus metrics
//
// /actions loads the nearest snapshot before the cursor and replays
// the journaled actions through the same reducer the live engine uses, so
// the served states are byte-identical to what the node actually went
// through. The server never touches the live State directly: the engine
// publishes an encoded snapshot after every batch, and replay works off
// the journal files.
package introspection

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/driftnode/driftnode/pkg/action"
	"github.com/driftnode/driftnode/pkg/journal"
	"github.com/driftnode/driftnode/pkg/reducer"
	"github.com/driftnode/driftnode/pkg/state"
)

const (
	defaultActionLimit = 50
	maxActionLimit     = 1000
	replayCacheSize    = 32
)

// Server is the introspection HTTP server. Construct with New, start
// with Start, stop with Shutdown.
type Server struct {
	log     *zap.Logger
	addr    string
	journal *journal.Journal

	stateJSON atomic.Value // []byte

	replayCache *lru.Cache

	registry      *prometheus.Registry
	peersGauge    prometheus.Gauge
	actionsGauge  prometheus.Gauge
	requestsTotal *prometheus.CounterVec
	requestTime   *prometheus.HistogramVec

	srv *http.Server
}

// New returns a Server bound to addr, replaying from j.
func New(log *zap.Logger, addr string, j *journal.Journal) *Server {
	cache, _ := lru.New(replayCacheSize)
	s := &Server{
		log:         log,
		addr:        addr,
		journal:     j,
		replayCache: cache,
		registry:    prometheus.NewRegistry(),
		peersGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "driftnode",
			Name:      "peers",
			Help:      "Number of peers currently tracked, any status.",
		}),
		actionsGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "driftnode",
			Name:      "last_action_id",
			Help:      "ID of the most recently dispatched action.",
		}),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "driftnode",
			Name:      "http_requests_total",
			Help:      "Introspection HTTP requests served, by path.",
		}, []string{"path"}),
		requestTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "driftnode",
			Name:      "http_request_seconds",
			Help:      "Introspection HTTP request latency, by path.",
		}, []string{"path"}),
	}
	s.registry.MustRegister(s.peersGauge, s.actionsGauge, s.requestsTotal, s.requestTime)

	mux := http.NewServeMux()
	mux.Handle("/state", s.instrument("/state", s.handleState))
	mux.Handle("/actions", s.instrument("/actions", s.handleActions))
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	s.srv = &http.Server{Addr: addr, Handler: mux}
	return s
}

// PublishState records the latest state for /state and refreshes the
// gauges. It is called from the engine's goroutine; the encoded bytes
// are what cross into handler goroutines.
func (s *Server) PublishState(st *state.State) {
	data, err := json.Marshal(st)
	if err != nil {
		s.log.Error("marshal state for introspection", zap.Error(err))
		return
	}
	s.stateJSON.Store(data)
	s.peersGauge.Set(float64(len(st.Peers)))
	s.actionsGauge.Set(float64(st.LastActionID))
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("introspection server", zap.Error(err))
		}
	}()
	s.log.Info("introspection listening", zap.String("address", s.addr))
}

// Shutdown stops the server, waiting for in-flight requests up to ctx's
// deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// instrument tags each request with a correlation ID and feeds the
// request counters.
func (s *Server) instrument(path string, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := uuid.New().String()
		w.Header().Set("X-Request-Id", reqID)
		h(w, r)
		s.requestsTotal.WithLabelValues(path).Inc()
		s.requestTime.WithLabelValues(path).Observe(time.Since(start).Seconds())
		s.log.Debug("http request",
			zap.String("request_id", reqID),
			zap.String("path", path),
			zap.Duration("took", time.Since(start)))
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	data, _ := s.stateJSON.Load().([]byte)
	if data == nil {
		http.Error(w, "state not published yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// actionPair is one element of the /actions response.
type actionPair struct {
	ID     uint64          `json:"id"`
	Kind   action.Kind     `json:"kind"`
	Action json.RawMessage `json:"action"`
	State  json.RawMessage `json:"state"`
}

func (s *Server) handleActions(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		http.Error(w, "no journal configured", http.StatusServiceUnavailable)
		return
	}
	cursor, err := queryUint(r, "cursor", 1)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	limit, err := queryUint(r, "limit", defaultActionLimit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if limit > maxActionLimit {
		limit = maxActionLimit
	}

	cacheKey := fmt.Sprintf("%d:%d", cursor, limit)
	if cached, ok := s.replayCache.Get(cacheKey); ok {
		w.Header().Set("Content-Type", "application/json")
		w.Write(cached.([]byte))
		return
	}

	pairs, err := s.replay(cursor, limit)
	if err != nil {
		s.log.Error("replay actions", zap.Uint64("cursor", cursor), zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	data, err := json.Marshal(pairs)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	// Only complete pages are immutable; a short page would grow as the
	// journal does, so it must not be cached.
	if uint64(len(pairs)) == limit {
		s.replayCache.Add(cacheKey, data)
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// replay rebuilds the states for actions [cursor, cursor+limit) by
// loading the nearest preceding snapshot and folding the journaled
// actions forward through reducer.Reduce, the exact function the live
// store dispatches through.
func (s *Server) replay(cursor, limit uint64) ([]actionPair, error) {
	// A snapshot anchored at N already includes action N, so the search
	// stops one short of cursor to keep the cursor's own action in range.
	before := cursor
	if before > 0 {
		before--
	}
	anchorID, snap, ok, err := s.journal.NearestSnapshot(before)
	if err != nil {
		return nil, err
	}

	st := state.New(state.Config{})
	if ok {
		if err := json.Unmarshal(snap, st); err != nil {
			return nil, fmt.Errorf("decode snapshot %d: %w", anchorID, err)
		}
	} else {
		anchorID = 0
	}

	records, err := s.journal.ReadRange(anchorID+1, cursor+limit-1)
	if err != nil {
		return nil, err
	}

	pairs := make([]actionPair, 0, limit)
	for _, rec := range records {
		act, err := action.Decode(rec.Kind, rec.Content)
		if err != nil {
			return nil, fmt.Errorf("decode action %d: %w", rec.ID, err)
		}
		st.LastActionID = rec.ID
		reducer.Reduce(st, act)
		if rec.ID < cursor {
			continue
		}
		stateJSON, err := json.Marshal(st)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, actionPair{
			ID:     rec.ID,
			Kind:   rec.Kind,
			Action: rec.Content,
			State:  stateJSON,
		})
	}
	return pairs, nil
}

func queryUint(r *http.Request, name string, def uint64) (uint64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return v, nil
}
