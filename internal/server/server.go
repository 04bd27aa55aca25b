package server

import (
	"context"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/sunthar/taskrelay/internal/archive"
	"github.com/sunthar/taskrelay/internal/config"
	"github.com/sunthar/taskrelay/internal/resolution"
	"github.com/sunthar/taskrelay/internal/transport"
	"github.com/sunthar/taskrelay/internal/workflow"
	"github.com/sunthar/taskrelay/pkg/cerr"
	"github.com/sunthar/taskrelay/pkg/clog"
)

// Server is the single HTTP surface: the SSE tool transport, the chat
// interactivity callback, the transcript intake, and the run archive.
type Server struct {
	server    *http.Server
	env       *config.Env
	transport *transport.Handler
	resolver  *resolution.Resolver
	workflow  *workflow.Workflow
	archive   *archive.Archive
}

func NewServer(
	env *config.Env,
	transportHandler *transport.Handler,
	resolver *resolution.Resolver,
	wf *workflow.Workflow,
	arch *archive.Archive,
) *Server {
	return &Server{
		env:       env,
		transport: transportHandler,
		resolver:  resolver,
		workflow:  wf,
		archive:   arch,
	}
}

func (s *Server) router() chi.Router {
	r := chi.NewRouter()
	r.Use(
		clog.SlogChiMiddleware(clog.WithChiFilter(func(r *http.Request) bool {
			return r.URL.Path != "/health"
		})),
		cerr.JSONResponseChiMiddleware(),
	)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		cerr.SetNewJSONError(r.Context(), cerr.NotFound, "not found", nil)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Get("/sse", s.transport.ServeSSE)
	r.Post("/messages", s.transport.ServeMessage)

	r.Post("/slack/events", s.handleInteraction)
	r.Post("/process-transcript", s.handleProcessTranscript)
	r.Post("/webhook", s.handleWebhook)

	r.Get("/runs", s.handleListRuns)
	r.Get("/runs/{runID}", s.handleGetRun)

	return r
}

// ListenAndServe starts the HTTP server. The context is the base context
// for all requests, so cancelling it also unwinds open SSE streams.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := net.JoinHostPort(s.env.HTTPHost, s.env.HTTPPort)

	s.server = &http.Server{
		Addr: addr,
		Handler: h2c.NewHandler(cors.New(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: true,
		}).Handler(s.router()), &http2.Server{}),
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}

	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
