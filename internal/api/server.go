// Package api exposes the auditor over HTTP, mirroring what the CLI does
// for a single host. The core never sees HTTP types; the server translates
// requests into transport descriptors and audit errors into status codes.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dkrizhanovskyi/ssh-config-auditor/internal/api/middleware"
	"github.com/dkrizhanovskyi/ssh-config-auditor/internal/audit"
	"github.com/dkrizhanovskyi/ssh-config-auditor/internal/rules"
	"github.com/dkrizhanovskyi/ssh-config-auditor/internal/transport"
)

// AuditRequest is the JSON body of POST /api/v1/audit. Exactly one of
// Password and KeyFile must be set. Credentials are used for the single
// audit and never stored or logged.
type AuditRequest struct {
	Host           string `json:"host"`
	Port           int    `json:"port,omitempty"`
	Username       string `json:"username,omitempty"`
	Password       string `json:"password,omitempty"`
	KeyFile        string `json:"key_file,omitempty"`
	KnownHostsFile string `json:"known_hosts_file,omitempty"`
	TimeoutSecs    int    `json:"timeout_secs,omitempty"`
}

// Descriptor converts the request into a transport descriptor, enforcing
// the exactly-one-credential invariant.
func (r AuditRequest) Descriptor() (transport.Descriptor, error) {
	if strings.TrimSpace(r.Host) == "" {
		return transport.Descriptor{}, errors.New("host is required")
	}
	if (r.Password == "") == (r.KeyFile == "") {
		return transport.Descriptor{}, errors.New("exactly one of password and key_file is required")
	}
	cred := transport.PasswordAuth(r.Password)
	if r.KeyFile != "" {
		cred = transport.PrivateKeyAuth(r.KeyFile)
	}
	return transport.Descriptor{
		Host:           r.Host,
		Port:           r.Port,
		User:           r.Username,
		Credential:     cred,
		KnownHostsFile: r.KnownHostsFile,
		ConnectTimeout: time.Duration(r.TimeoutSecs) * time.Second,
	}, nil
}

// AuditService runs one audit; *audit.Auditor satisfies it.
type AuditService interface {
	Run(ctx context.Context, d transport.Descriptor) (*audit.Report, error)
}

// RuleInfo describes one registered rule for the catalog endpoint.
type RuleInfo struct {
	ID string `json:"id"`
}

// Config wires the server's collaborators and policy knobs.
type Config struct {
	Auditor     AuditService
	RuleSet     *rules.Set
	AuthToken   string
	Logger      *zap.Logger
	CORSOrigins []string // allowed CORS origins (empty = allow all)
	RateLimit   int      // requests per second per IP (0 = disabled)
	RateBurst   int
}

// Server is the HTTP front end. It implements http.Handler.
type Server struct {
	cfg      Config
	mux      *http.ServeMux
	limiters *rateLimiterMap
}

// NewServer builds the server and registers its routes.
func NewServer(cfg Config) *Server {
	srv := &Server{
		cfg:      cfg,
		mux:      http.NewServeMux(),
		limiters: newRateLimiterMap(),
	}
	srv.routes()
	return srv
}

// Close stops background maintenance started by NewServer. Safe to call
// more than once.
func (s *Server) Close() {
	s.limiters.close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Middleware chain: RequestID -> Logging -> RateLimit -> CORS -> mux
	handler := middleware.RequestID(s.withLogging(s.withRateLimit(s.withCORS(s.mux))))
	handler.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.Handle("/api/v1/health", s.withAuth(http.HandlerFunc(s.handleHealth)))
	s.mux.Handle("/api/v1/rules", s.withAuth(http.HandlerFunc(s.handleRules)))
	s.mux.Handle("/api/v1/audit", s.withAuth(http.HandlerFunc(s.handleAudit)))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, r)
		return
	}
	catalog := make([]RuleInfo, 0, s.cfg.RuleSet.Len())
	for _, rule := range s.cfg.RuleSet.Rules() {
		catalog = append(catalog, RuleInfo{ID: rule.ID()})
	}
	writeJSON(w, http.StatusOK, catalog)
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, r)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1048576) // 1MB limit

	var req AuditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	descriptor, err := req.Descriptor()
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	report, err := s.cfg.Auditor.Run(r.Context(), descriptor)
	if err != nil {
		s.writeError(w, r, auditErrorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// auditErrorStatus maps terminal audit error kinds onto HTTP status codes.
// Connection failures do not land here; the orchestrator folds them into
// the report itself.
func auditErrorStatus(err error) int {
	var aerr *audit.Error
	if !errors.As(err, &aerr) {
		return http.StatusInternalServerError
	}
	switch aerr.Kind {
	case transport.KindTimeout:
		return http.StatusGatewayTimeout
	case transport.KindConnection, transport.KindAuthentication, transport.KindRemoteCommand:
		return http.StatusBadGateway
	case audit.KindParse:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func (s *Server) withAuth(next http.Handler) http.Handler {
	if s.cfg.AuthToken == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("X-Auth-Token")
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AuthToken)) != 1 {
			s.writeError(w, r, http.StatusUnauthorized, errors.New("unauthorized"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(lrw, r)

		if s.cfg.Logger != nil {
			s.cfg.Logger.Info("http_request",
				zap.String("request_id", middleware.GetRequestID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
				zap.Int("status", lrw.statusCode),
				zap.Duration("duration", time.Since(start)),
			)
		}
	})
}

func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.RateLimit <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		clientIP := r.RemoteAddr
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			if idx := strings.Index(forwarded, ","); idx > 0 {
				clientIP = strings.TrimSpace(forwarded[:idx])
			} else {
				clientIP = strings.TrimSpace(forwarded)
			}
		}
		if idx := strings.LastIndex(clientIP, ":"); idx > 0 {
			clientIP = clientIP[:idx]
		}

		limiter := s.limiters.getLimiter(clientIP, s.cfg.RateLimit, s.cfg.RateBurst)
		if !limiter.Allow() {
			s.writeError(w, r, http.StatusTooManyRequests, errors.New("rate limit exceeded"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		allowOrigin := "*"
		if len(s.cfg.CORSOrigins) > 0 {
			allowOrigin = ""
			for _, allowed := range s.cfg.CORSOrigins {
				if allowed == origin {
					allowOrigin = origin
					break
				}
			}
		}
		if allowOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Auth-Token")
			w.Header().Set("Access-Control-Max-Age", "3600")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	msg := err.Error()
	if status >= 500 && status != http.StatusBadGateway && status != http.StatusGatewayTimeout {
		if s.cfg.Logger != nil {
			s.cfg.Logger.Error("internal_server_error",
				zap.String("request_id", middleware.GetRequestID(r.Context())),
				zap.String("path", r.URL.Path),
				zap.Error(err),
			)
		}
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, r, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
}

// rateLimiterMap manages per-IP rate limiters with periodic cleanup.
type rateLimiterMap struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiter
	stop     chan struct{}
	stopOnce sync.Once
}

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newRateLimiterMap() *rateLimiterMap {
	m := &rateLimiterMap{
		limiters: make(map[string]*ipLimiter),
		stop:     make(chan struct{}),
	}
	go m.cleanupLoop()
	return m
}

func (m *rateLimiterMap) close() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *rateLimiterMap) getLimiter(ip string, rps, burst int) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.limiters[ip]
	if !ok {
		l = &ipLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
		m.limiters[ip] = l
	}
	l.lastSeen = time.Now()
	return l.limiter
}

func (m *rateLimiterMap) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.mu.Lock()
			for ip, l := range m.limiters {
				if time.Since(l.lastSeen) > 5*time.Minute {
					delete(m.limiters, ip)
				}
			}
			m.mu.Unlock()
		}
	}
}
