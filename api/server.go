package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	apihandlers "ledgerd/api/handlers"
	"ledgerd/blockchain/store"
	"ledgerd/logger"
	"ledgerd/observability"
)

const (
	DefaultMaxBodySize = 1 << 20
	shutdownTimeout    = 5 * time.Second
)

var allowedCORSHeaders = []string{"Accept", "Accept-Language", "Content-Language", "Origin", "Content-Type"}

type Dependencies struct {
	Store    store.ChainStore
	Miner    apihandlers.Miner
	Peers    apihandlers.PeerRegistry
	Resolver apihandlers.ChainResolver
	Metrics  *observability.Metrics
	Logger   zerolog.Logger
}

// Server represents the HTTP API server
type Server struct {
	deps   Dependencies
	log    zerolog.Logger
	router *mux.Router
	http   *http.Server
}

func NewServer(addr string, deps Dependencies) *Server {
	s := &Server{
		deps:   deps,
		log:    logger.Module(deps.Logger, "api"),
		router: mux.NewRouter(),
	}
	s.setupRoutes()

	s.http = &http.Server{
		Addr:              addr,
		Handler:           http.MaxBytesHandler(handlers.CORS(handlers.AllowedHeaders(allowedCORSHeaders))(s.router), DefaultMaxBodySize),
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: time.Second,
		IdleTimeout:       30 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	r := s.router
	r.NotFoundHandler = http.HandlerFunc(http.NotFound)

	r.HandleFunc("/mine", func(w http.ResponseWriter, r *http.Request) {
		apihandlers.HandleMine(w, r, s.deps.Miner, s.log)
	}).Methods(http.MethodGet)

	r.HandleFunc("/transactions/new", func(w http.ResponseWriter, r *http.Request) {
		apihandlers.HandleNewTransaction(w, r, s.deps.Store, s.deps.Metrics, s.log)
	}).Methods(http.MethodPost)

	r.HandleFunc("/chain", func(w http.ResponseWriter, r *http.Request) {
		apihandlers.HandleChain(w, r, s.deps.Store)
	}).Methods(http.MethodGet)

	r.HandleFunc("/nodes/register", func(w http.ResponseWriter, r *http.Request) {
		apihandlers.HandleRegisterNodes(w, r, s.deps.Peers, s.log)
	}).Methods(http.MethodPost)

	r.HandleFunc("/nodes/resolve", func(w http.ResponseWriter, r *http.Request) {
		apihandlers.HandleResolve(w, r, s.deps.Resolver, s.log)
	}).Methods(http.MethodGet)

	r.Handle("/metrics", s.deps.Metrics.Handler()).Methods(http.MethodGet)
}

// Handler exposes the fully wrapped handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errc := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", ln.Addr().String()).Msg("HTTP API listening")
		errc <- s.http.Serve(ln)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.log.Info().Msg("HTTP API shutting down")
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

// Start listens on the configured address and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}
