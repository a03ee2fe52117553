package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/sirupsen/logrus"

	"github.com/token-lab/token-lab-server/pkg/lab/config"
	"github.com/token-lab/token-lab-server/pkg/lab/minter"
	"github.com/token-lab/token-lab-server/pkg/metrics"
	"github.com/token-lab/token-lab-server/pkg/objectstorage"
	"github.com/token-lab/token-lab-server/pkg/solana"
)

// MintService sequences a full mint request.
type MintService interface {
	Mint(ctx context.Context, req *minter.MintRequest) (*minter.MintResult, error)
	CompressMint(ctx context.Context, req *minter.MintRequest) (*minter.MintResult, error)
}

// Server exposes the minting service over HTTP.
type Server struct {
	log          *logrus.Entry
	conf         *config.Config
	minter       MintService
	assets       objectstorage.Client
	solanaClient solana.Client
	startTime    time.Time
}

func NewServer(
	conf *config.Config,
	mintService MintService,
	assets objectstorage.Client,
	solanaClient solana.Client,
) *Server {
	return &Server{
		log:          logrus.StandardLogger().WithField("type", "server/web"),
		conf:         conf,
		minter:       mintService,
		assets:       assets,
		solanaClient: solanaClient,
		startTime:    time.Now(),
	}
}

// Handler returns the routed http handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/mint", s.withCors(http.MethodPost, s.withMetrics("POST /api/mint", s.handleMint)))
	mux.HandleFunc("/api/compress-mint", s.withCors(http.MethodPost, s.withMetrics("POST /api/compress-mint", s.handleCompressMint)))
	mux.HandleFunc("/api/upload", s.withCors(http.MethodPost, s.withMetrics("POST /api/upload", s.handleUpload)))
	mux.HandleFunc("/api/health", s.withCors(http.MethodGet, s.handleHealth))
	return mux
}

// Run serves until the listener fails or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.conf.Port.Get(ctx)),
		Handler: s.Handler(),
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	s.log.WithField("address", httpServer.Addr).Info("serving http")
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// withMetrics starts a New Relic transaction for the request when a metrics
// provider was attached to the server's base context.
func (s *Server) withMetrics(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		app, ok := r.Context().Value(metrics.NewRelicContextKey).(*newrelic.Application)
		if !ok || app == nil {
			next(w, r)
			return
		}

		txn := app.StartTransaction(route)
		defer txn.End()

		txn.SetWebRequestHTTP(r)
		w = txn.SetWebResponse(w)
		next(w, newrelic.RequestWithTransactionContext(r, txn))
	}
}

func (s *Server) withCors(method string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if r.Method != method {
			s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed.")
			return
		}

		next(w, r)
	}
}

func (s *Server) writeJson(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.WithError(err).Warn("failed to write response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	if status == http.StatusBadRequest {
		s.writeJson(w, status, map[string]string{"message": message})
		return
	}
	s.writeJson(w, status, map[string]string{"error": message})
}
