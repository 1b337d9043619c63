package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/phonelink/internal/apperr"
	"github.com/sells-group/phonelink/internal/authz"
	"github.com/sells-group/phonelink/internal/backfill"
	"github.com/sells-group/phonelink/internal/httputil"
	"github.com/sells-group/phonelink/internal/lookup"
	"github.com/sells-group/phonelink/internal/metrics"
	"github.com/sells-group/phonelink/internal/model"
	"github.com/sells-group/phonelink/internal/monitoring"
)

var (
	servePort      int
	serveStaticDir string
)

// serveDeps holds everything the HTTP handlers need.
type serveDeps struct {
	Lookup        *lookup.Service
	Orchestrator  *backfill.Orchestrator
	Tokens        *authz.TokenManager
	Roles         authz.RoleResolver
	Gatherer      prometheus.Gatherer
	Alerter       *monitoring.Alerter
	DefaultDomain string
	StaticDir     string
	CORSOrigins   []string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the lookup and admin backfill HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := openStores(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		tokens, err := newTokenManager()
		if err != nil {
			return err
		}

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m := metrics.New(reg)
		orch := newOrchestrator(cfg, st, m, 0)

		svc, closeCache := newLookupService(ctx, cfg, st.Dir, m)
		defer closeCache()

		staticDir := serveStaticDir
		if staticDir == "" {
			staticDir = cfg.Server.StaticDir
		}

		handler := buildMux(ctx, &serveDeps{
			Lookup:        svc,
			Orchestrator:  orch,
			Tokens:        tokens,
			Roles:         authz.NewDirectoryRoles(st.Dir),
			Gatherer:      reg,
			Alerter:       monitoring.NewAlerter(cfg.Monitoring),
			DefaultDomain: cfg.Backfill.Domain,
			StaticDir:     staticDir,
			CORSOrigins:   cfg.Server.CORSOrigins,
		})

		return startServer(ctx, handler, resolvePort(servePort, cfg.Server.Port))
	},
}

// buildMux registers every route. Admin routes require a bearer token whose
// user holds the admin role in the directory.
func buildMux(_ context.Context, d *serveDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	if len(d.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   d.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/resolveEmailByPhone", resolveHandler(d.Lookup))

		r.Group(func(r chi.Router) {
			r.Use(authz.Authenticate(d.Tokens))
			r.Use(authz.RequireRole(d.Roles, model.RoleAdmin))
			r.Post("/backfillEmailsAndAuth", backfillHandler(d.Orchestrator, d.Alerter, d.DefaultDomain))
			r.Post("/linkPhones", linkPhonesHandler(d.Orchestrator, d.Alerter))
		})
	})

	r.NotFound(spaHandler(d.StaticDir))
	return r
}

func resolveHandler(svc *lookup.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Phone string `json:"phone"`
		}
		if err := httputil.Decode(r, &req); err != nil {
			httputil.WriteError(w, err)
			return
		}
		res, err := svc.ResolveEmailByPhone(r.Context(), req.Phone)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, res)
	}
}

func backfillHandler(orch *backfill.Orchestrator, alerter *monitoring.Alerter, defaultDomain string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req backfill.Request
		if err := httputil.Decode(r, &req); err != nil {
			httputil.WriteError(w, err)
			return
		}
		if req.Domain == "" {
			req.Domain = defaultDomain
		}
		if req.Limit < 0 {
			httputil.WriteError(w, apperr.New(apperr.InvalidArgument, "limit must be >= 0"))
			return
		}

		res, err := orch.Run(r.Context(), req)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		alerter.Notify(r.Context(), "backfill", res)
		zap.L().Info("backfill request complete",
			zap.String("caller", authz.UserID(r.Context())),
			zap.String("run_id", res.RunID),
			zap.Int("processed", res.Processed),
			zap.Bool("dry_run", res.DryRun),
		)
		httputil.WriteJSON(w, http.StatusOK, res)
	}
}

func linkPhonesHandler(orch *backfill.Orchestrator, alerter *monitoring.Alerter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req backfill.LinkRequest
		if err := httputil.Decode(r, &req); err != nil {
			httputil.WriteError(w, err)
			return
		}
		if req.Limit < 0 {
			httputil.WriteError(w, apperr.New(apperr.InvalidArgument, "limit must be >= 0"))
			return
		}

		res, err := orch.RunLinkPhones(r.Context(), req)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		alerter.Notify(r.Context(), "link", res)
		zap.L().Info("link-phones request complete",
			zap.String("caller", authz.UserID(r.Context())),
			zap.String("run_id", res.RunID),
			zap.Int("linked", res.Linked),
		)
		httputil.WriteJSON(w, http.StatusOK, res)
	}
}

// spaHandler serves files from dir and falls back to index.html so client
// side routes resolve. Non-GET requests and a missing dir get a JSON 404.
func spaHandler(dir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		notFound := func() {
			httputil.WriteError(w, apperr.New(apperr.NotFound, "not found"))
		}
		if dir == "" || (r.Method != http.MethodGet && r.Method != http.MethodHead) {
			notFound()
			return
		}

		name := filepath.Join(dir, filepath.FromSlash(path.Clean("/"+r.URL.Path)))
		if info, err := os.Stat(name); err == nil && !info.IsDir() {
			http.ServeFile(w, r, name)
			return
		}

		index := filepath.Join(dir, "index.html")
		if _, err := os.Stat(index); err != nil {
			notFound()
			return
		}
		http.ServeFile(w, r, index)
	}
}

// requestLogger logs one line per request with the chi request id.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// resolvePort returns the flag port when set, else the config port.
func resolvePort(flagPort, cfgPort int) int {
	if flagPort != 0 {
		return flagPort
	}
	return cfgPort
}

// startServer serves handler on port until ctx is canceled, then shuts
// down gracefully.
func startServer(ctx context.Context, handler http.Handler, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	zap.L().Info("starting server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server listen")
	}
	return nil
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().StringVar(&serveStaticDir, "static-dir", "", "directory of the admin SPA (default from config)")
	rootCmd.AddCommand(serveCmd)
}
