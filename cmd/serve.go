package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eduseek/curator/internal/model"
	"github.com/eduseek/curator/internal/pipeline"
	"github.com/eduseek/curator/internal/usage"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP curation API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newAPIHandler(e.Curator, e.Usage),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// curateRequest is the JSON body for POST /api/curate.
type curateRequest struct {
	Query       string `json:"query"`
	Region      string `json:"region"`
	Grade       string `json:"grade"`
	Subject     string `json:"subject"`
	MaxHits     int    `json:"max_hits,omitempty"`
	TimeoutSecs int    `json:"timeout_secs,omitempty"`
}

// curateRunner is the pipeline surface the API needs; satisfied by
// *pipeline.Curator.
type curateRunner interface {
	Run(ctx context.Context, q model.Query) (*pipeline.Outcome, error)
}

func newAPIHandler(cur curateRunner, usageStore *usage.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/api/curate", func(w http.ResponseWriter, req *http.Request) {
		var body curateRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if body.Query == "" || body.Region == "" || body.Grade == "" || body.Subject == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query, region, grade and subject are required"})
			return
		}

		ctx := req.Context()
		if body.TimeoutSecs > 0 {
			var cancel func()
			ctx, cancel = context.WithTimeout(ctx, time.Duration(body.TimeoutSecs)*time.Second)
			defer cancel()
		}

		out, err := cur.Run(ctx, model.Query{
			Text:    body.Query,
			Region:  body.Region,
			GradeID: body.Grade,
			Subject: body.Subject,
			MaxHits: body.MaxHits,
		})
		if err != nil {
			status := http.StatusInternalServerError
			if eris.Is(err, model.ErrProvider) {
				status = http.StatusBadGateway
			}
			zap.L().Error("curate request failed",
				zap.String("region", body.Region),
				zap.String("query", body.Query),
				zap.Error(err),
			)
			writeJSON(w, status, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, out)
	})

	r.Get("/api/usage", func(w http.ResponseWriter, req *http.Request) {
		period := req.URL.Query().Get("period")
		if period == "" {
			period = usage.Period(time.Now().UTC())
		}
		counters, err := usageStore.List(req.Context(), period)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"period": period, "providers": counters})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("write response", zap.Error(err))
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
