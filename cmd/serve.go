package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sahel-analytics/epicast/internal/ledger"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve extraction run status over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		led, err := ledger.Open(cfg.Ledger.Path)
		if err != nil {
			return err
		}
		defer led.Close() //nolint:errcheck
		if err := led.Migrate(ctx); err != nil {
			return err
		}

		r := chi.NewRouter()
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet},
		}))

		r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Get("/api/run", func(w http.ResponseWriter, req *http.Request) {
			run, ok, err := led.LatestRun(req.Context())
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
				return
			}
			if !ok {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "no runs recorded"})
				return
			}
			writeJSON(w, http.StatusOK, runStatus(req, led, run))
		})

		r.Get("/api/run/{id}", func(w http.ResponseWriter, req *http.Request) {
			run, ok, err := led.Run(req.Context(), chi.URLParam(req, "id"))
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
				return
			}
			if !ok {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown run"})
				return
			}
			writeJSON(w, http.StatusOK, runStatus(req, led, run))
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

type unitStatus struct {
	District   string `json:"district"`
	Status     string `json:"status"`
	Checkpoint string `json:"checkpoint,omitempty"`
}

type runStatusBody struct {
	ID          string       `json:"id"`
	Granularity string       `json:"granularity"`
	Start       string       `json:"range_start"`
	End         string       `json:"range_end"`
	Status      string       `json:"status"`
	Done        int          `json:"done"`
	Total       int          `json:"total"`
	Units       []unitStatus `json:"units"`
}

func runStatus(req *http.Request, led *ledger.Ledger, run *ledger.Run) runStatusBody {
	body := runStatusBody{
		ID:          run.ID,
		Granularity: run.Granularity,
		Start:       run.Start.Format("2006-01-02"),
		End:         run.End.Format("2006-01-02"),
		Status:      run.Status,
	}
	units, err := led.Units(req.Context(), run.ID)
	if err != nil {
		zap.L().Warn("list units", zap.String("run", run.ID), zap.Error(err))
		return body
	}
	for _, u := range units {
		if u.Status == ledger.StatusDone {
			body.Done++
		}
		body.Units = append(body.Units, unitStatus{
			District:   u.District,
			Status:     string(u.Status),
			Checkpoint: u.Checkpoint,
		})
	}
	body.Total = len(units)
	return body
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
