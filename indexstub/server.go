// Package indexstub is an in-memory bulk-index endpoint that upserts brands
// by id. It stands in for the search backend in local runs and tests.
package indexstub

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"brandseed/generator"
)

type Option func(*Server)

// WithFailBatches makes the n-th bulk-insert requests (1-based) answer 500.
func WithFailBatches(ns ...int) Option {
	return func(s *Server) {
		for _, n := range ns {
			s.failBatches[n] = true
		}
	}
}

func WithLogger(l *logrus.Entry) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

type Server struct {
	mu          sync.RWMutex
	docs        map[int64]generator.Brand
	requests    int
	failBatches map[int]bool

	registry *prometheus.Registry
	inserts  *prometheus.CounterVec
	upserted prometheus.Counter

	log *logrus.Entry
}

func New(opts ...Option) *Server {
	s := &Server{
		docs:        make(map[int64]generator.Brand),
		failBatches: make(map[int]bool),
		registry:    prometheus.NewRegistry(),
		inserts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "indexstub",
			Name:      "bulk_insert_requests_total",
			Help:      "Bulk insert requests by response code.",
		}, []string{"code"}),
		upserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "indexstub",
			Name:      "brands_upserted_total",
			Help:      "Brands written, counting re-submissions.",
		}),
		log: logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registry.MustRegister(s.inserts, s.upserted)
	s.log = s.log.WithField("component", "indexstub")
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_ = serveJSON(w, http.StatusOK, Response{Message: "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	r.Route("/brand", func(r chi.Router) {
		r.Post("/bulk-insert", s.addBrands)
		r.Get("/{id}", s.getBrand)
	})
	return r
}

// Len is the number of distinct brands stored.
func (s *Server) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

func (s *Server) Get(id int64) (generator.Brand, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.docs[id]
	return b, ok
}

// Requests is the number of bulk-insert requests received.
func (s *Server) Requests() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.requests
}

func (s *Server) addBrands(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests++
	n := s.requests
	s.mu.Unlock()

	log := s.log.WithField("request", n)
	if s.failBatches[n] {
		log.Warn("indexstub: injected failure")
		s.inserts.WithLabelValues("500").Inc()
		_ = serveJSON(w, http.StatusInternalServerError, Response{Message: "Something went wrong!"})
		return
	}

	var brands []generator.Brand
	if err := json.NewDecoder(r.Body).Decode(&brands); err != nil {
		log.WithError(err).Info("indexstub: invalid request body")
		s.inserts.WithLabelValues("400").Inc()
		_ = serveJSON(w, http.StatusBadRequest, Response{Code: CodeInvalidArg, Message: "invalid request body"})
		return
	}
	if len(brands) == 0 {
		s.inserts.WithLabelValues("400").Inc()
		_ = serveJSON(w, http.StatusBadRequest, Response{Code: CodeInvalidArg, Message: "no brands to insert in request body"})
		return
	}

	s.mu.Lock()
	for _, b := range brands {
		s.docs[b.ID] = b
	}
	s.mu.Unlock()

	s.upserted.Add(float64(len(brands)))
	s.inserts.WithLabelValues("200").Inc()
	count := int64(len(brands))
	log.WithField("size", count).Debug("indexstub: brands upserted")
	_ = serveJSON(w, http.StatusOK, Response{Message: "Successful", Count: &count})
}

func (s *Server) getBrand(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		_ = serveJSON(w, http.StatusBadRequest, Response{Code: CodeInvalidArg, Message: "invalid brand id"})
		return
	}
	b, ok := s.Get(id)
	if !ok {
		_ = serveJSON(w, http.StatusNotFound, Response{Message: "brand not found"})
		return
	}
	_ = serveJSON(w, http.StatusOK, Response{Message: "Successful", Data: b})
}
