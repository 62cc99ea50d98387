package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"payflow/internal/cache"
	"payflow/internal/core"
	applog "payflow/internal/log"
	mwratelimit "payflow/internal/middleware/ratelimit"
	"payflow/internal/middleware/security"
	"payflow/internal/middleware/trace"
	"payflow/internal/ratelimit"
)

// TransferService is the application surface the handlers call into.
type TransferService interface {
	Execute(ctx context.Context, senderID, recipientHandle, recipientName string, amount core.Money, description string) core.Outcome
	TransferByReference(ctx context.Context, reference string) (core.Transfer, error)
	RecentTransfers(ctx context.Context, senderID string, limit int) ([]core.Transfer, error)
	SavedRecipients(ctx context.Context, ownerID string) ([]core.Recipient, error)
}

type Server struct {
	http.Server
	svc TransferService

	// Saved recipients change rarely; a short TTL keeps the picker fast
	// without serving a stale list for long after a transfer.
	recipientsCache *cache.LRUCache[[]core.Recipient]
	cacheManager    *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
// limiter may be nil, in which case per-IP admission is skipped.
func NewServer(addr string, svc TransferService, limiter *ratelimit.Limiter) *Server {
	mux := http.NewServeMux()

	s := &Server{
		svc:             svc,
		recipientsCache: cache.NewLRUCache[[]core.Recipient](500, 30*time.Second),
		cacheManager:    cache.NewManager(),
	}

	s.cacheManager.Register(s.recipientsCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("POST /api/transfers", s.handleCreateTransfer)
	mux.HandleFunc("GET /api/transfers", s.handleListTransfers)
	mux.HandleFunc("GET /api/transfers/{reference}", s.handleGetTransfer)
	mux.HandleFunc("GET /api/recipients", s.handleListRecipients)
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	resolver := security.NewResolver()
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	tracer := trace.NewMiddleware(resolver.ExtractClientIP)

	reqLogger := applog.New(applog.Config{
		Component: applog.ComponentHTTP,
		Handler:   slog.Default().Handler(),
	})

	var handler http.Handler = mux
	if limiter != nil {
		handler = mwratelimit.NewMiddleware(limiter, resolver.ExtractClientIP).Handler(handler)
	}
	handler = applog.RequestIDMiddleware(func(r *http.Request) string {
		return trace.GetRequestID(r.Context())
	})(handler)
	handler = tracer.Middleware(handler)
	handler = applog.Middleware(reqLogger)(handler)
	handler = headers.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
