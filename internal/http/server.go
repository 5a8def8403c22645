// Package http exposes the ledger over a JSON API.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"moneyman/internal/auth"
	"moneyman/internal/ledger"
	applog "moneyman/internal/log"
	"moneyman/internal/users"
)

type Server struct {
	ledger  *ledger.Service
	users   *users.Service
	tokens  *auth.Manager
	limiter *rateLimiter
}

// NewServer builds the HTTP server. Callers own timeouts and shutdown.
func NewServer(addr string, ledgerSvc *ledger.Service, userSvc *users.Service, tokens *auth.Manager, ratePerMinute int) *http.Server {
	s := &Server{
		ledger:  ledgerSvc,
		users:   userSvc,
		tokens:  tokens,
		limiter: newRateLimiter(ratePerMinute),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleHealth)

	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)

	mux.Handle("POST /api/transactions", s.authenticated(s.handleAddTransaction))
	mux.Handle("GET /api/transactions", s.authenticated(s.handleListTransactions))
	mux.Handle("PUT /api/transactions/{id}", s.authenticated(s.handleEditTransaction))
	mux.Handle("DELETE /api/transactions/{id}", s.authenticated(s.handleDeleteTransaction))
	mux.Handle("GET /api/accounts", s.authenticated(s.handleListAccounts))

	return &http.Server{
		Addr:    addr,
		Handler: s.limiter.middleware(requestLog(mux)),
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type ctxKey string

const ctxUserID ctxKey = "user_id"

// authenticated resolves the bearer token and stores the user id in the
// request context.
func (s *Server) authenticated(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Message: "authorization required"})
			return
		}
		userID, err := s.tokens.Verify(token)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Message: "invalid or expired token"})
			return
		}
		ctx := context.WithValue(r.Context(), ctxUserID, userID)
		next(w, r.WithContext(ctx))
	})
}

func requestUser(r *http.Request) string {
	id, _ := r.Context().Value(ctxUserID).(string)
	return id
}

// statusRecorder captures the response code for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := newRequestID()
		w.Header().Set("X-Request-ID", requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		slog.InfoContext(r.Context(), "Request handled",
			applog.FieldRequestID, requestID,
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldStatusCode, rec.status,
			applog.FieldDuration, time.Since(start).Milliseconds(),
			applog.FieldClientIP, clientIP(r))
	})
}

func newRequestID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(buf)
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
