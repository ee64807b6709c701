package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"dutch-auction-service/internal/config"
	"dutch-auction-service/internal/domain/auction"
	"dutch-auction-service/internal/domain/shared"
	"dutch-auction-service/internal/ports/inbound"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Server exposes read queries and the keeper upkeep endpoints over HTTP
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	auctions   inbound.AuctionService
	upkeep     inbound.UpkeepService
	limiters   *limiterSet
	logger     zerolog.Logger
}

type ServerParams struct {
	Config         *config.Config
	AuctionService inbound.AuctionService
	UpkeepService  inbound.UpkeepService
	Logger         zerolog.Logger
}

func NewServer(params ServerParams) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		auctions: params.AuctionService,
		upkeep:   params.UpkeepService,
		limiters: newLimiterSet(rate.Limit(params.Config.HTTP.RateLimit), params.Config.HTTP.RateBurst, limiterIdleTTL, time.Now),
		logger:   params.Logger.With().Str("component", "rest_server").Logger(),
	}

	s.router.Use(s.rateLimit)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/auctions", s.handleListAuctions).Methods(http.MethodGet)
	s.router.HandleFunc("/auctions/{id}", s.handleGetAuction).Methods(http.MethodGet)
	s.router.HandleFunc("/auctions/{id}/events", s.handleListEvents).Methods(http.MethodGet)
	s.router.HandleFunc("/auctions/{id}/upkeep", s.handleCheckUpkeep).Methods(http.MethodGet)
	s.router.HandleFunc("/auctions/{id}/upkeep", s.handlePerformUpkeep).Methods(http.MethodPost)

	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort(params.Config.Server.Host, params.Config.Server.HTTPPort),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}
	return s
}

// ServeHTTP lets tests drive the router directly
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start serves until Stop is called
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("Starting REST server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start REST server: %w", err)
	}
	return nil
}

// Stop gracefully stops the REST server
func (s *Server) Stop(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown REST server: %w", err)
	}
	s.logger.Info().Msg("REST server stopped")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "dutch-auction-rest"})
}

func (s *Server) handleListAuctions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := inbound.ListAuctionsRequest{
		Page:     atoiDefault(q.Get("page"), 1),
		PageSize: atoiDefault(q.Get("page_size"), 10),
	}
	if raw := q.Get("status"); raw != "" {
		status, ok := auction.ParseStatus(raw)
		if !ok {
			s.writeError(w, shared.ErrInvalidRequest)
			return
		}
		req.Status = &status
	}

	views, err := s.auctions.ListAuctions(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"auctions": views, "count": len(views)})
}

func (s *Server) handleGetAuction(w http.ResponseWriter, r *http.Request) {
	id, ok := s.auctionID(w, r)
	if !ok {
		return
	}
	view, err := s.auctions.GetAuction(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := s.auctionID(w, r)
	if !ok {
		return
	}
	events, err := s.auctions.ListEvents(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events, "count": len(events)})
}

func (s *Server) handleCheckUpkeep(w http.ResponseWriter, r *http.Request) {
	id, ok := s.auctionID(w, r)
	if !ok {
		return
	}
	check, err := s.upkeep.CheckUpkeep(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, check)
}

func (s *Server) handlePerformUpkeep(w http.ResponseWriter, r *http.Request) {
	id, ok := s.auctionID(w, r)
	if !ok {
		return
	}
	result, err := s.upkeep.PerformUpkeep(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) auctionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, shared.ErrInvalidAuctionIDFormat)
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Msg("Request failed")
	}
	writeJSON(w, status, map[string]string{"error": err.Error(), "code": shared.CodeOf(err)})
}

// StatusFor maps an error kind to its HTTP status
func StatusFor(err error) int {
	switch shared.KindOf(err) {
	case shared.KindValidation:
		return http.StatusBadRequest
	case shared.KindNotFound:
		return http.StatusNotFound
	case shared.KindAuthorization:
		return http.StatusForbidden
	case shared.KindState, shared.KindCollateral, shared.KindTransfer:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func atoiDefault(raw string, def int) int {
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	return def
}

// limiterIdleTTL is how long a client IP keeps its token bucket without
// sending a request
const limiterIdleTTL = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterSet holds one token bucket per client IP. Buckets idle for longer
// than idle are swept at most once per idle period.
type limiterSet struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	idle      time.Duration
	visitors  map[string]*visitor
	lastSweep time.Time
	now       func() time.Time
}

func newLimiterSet(limit rate.Limit, burst int, idle time.Duration, now func() time.Time) *limiterSet {
	if burst <= 0 {
		burst = 1
	}
	return &limiterSet{
		limit:     limit,
		burst:     burst,
		idle:      idle,
		visitors:  make(map[string]*visitor),
		lastSweep: now(),
		now:       now,
	}
}

func (l *limiterSet) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= l.idle {
		l.sweep(now)
	}

	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter
}

func (l *limiterSet) sweep(now time.Time) {
	for key, v := range l.visitors {
		if now.Sub(v.lastSeen) >= l.idle {
			delete(l.visitors, key)
		}
	}
	l.lastSweep = now
}

func (l *limiterSet) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if !s.limiters.get(host).Allow() {
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded", "code": "rate_limited"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
