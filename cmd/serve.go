package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quorum-research/survey-cli/internal/model"
	"github.com/quorum-research/survey-cli/internal/scheduler"
)

var servePort int

// jobRegistry tracks background jobs started over HTTP.
type jobRegistry struct {
	mu      sync.RWMutex
	handles map[string]*scheduler.Handle
}

func (r *jobRegistry) add(h *scheduler.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles[h.ID()] = h
}

func (r *jobRegistry) get(id string) (*scheduler.Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[id]
	return h, ok
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for background job submission and progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort == 0 {
			servePort = cfg.Server.Port
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		sched := scheduler.New(schedulerConfig(nil), env.cache, invokers(false))
		registry := &jobRegistry{handles: make(map[string]*scheduler.Handle)}

		mux := http.NewServeMux()

		mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
		})

		mux.HandleFunc("POST /jobs", func(w http.ResponseWriter, r *http.Request) {
			raw, err := io.ReadAll(r.Body)
			if err != nil {
				http.Error(w, `{"error":"read body"}`, http.StatusBadRequest)
				return
			}
			job, err := model.ParseJob(raw)
			if err != nil {
				http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusBadRequest)
				return
			}
			handle, err := sched.RunBackground(ctx, job)
			if err != nil {
				http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusBadRequest)
				return
			}
			registry.add(handle)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(handle.Poll())
		})

		mux.HandleFunc("GET /jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
			handle, ok := registry.get(r.PathValue("id"))
			if !ok {
				http.Error(w, `{"error":"unknown job"}`, http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(handle.Poll())
		})

		mux.HandleFunc("GET /jobs/{id}/results", func(w http.ResponseWriter, r *http.Request) {
			handle, ok := registry.get(r.PathValue("id"))
			if !ok {
				http.Error(w, `{"error":"unknown job"}`, http.StatusNotFound)
				return
			}
			if !handle.Poll().Finished {
				http.Error(w, `{"error":"job still running"}`, http.StatusConflict)
				return
			}
			res, err := handle.Wait(r.Context())
			if err != nil {
				http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(res)
		})

		mux.HandleFunc("DELETE /jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
			handle, ok := registry.get(r.PathValue("id"))
			if !ok {
				http.Error(w, `{"error":"unknown job"}`, http.StatusNotFound)
				return
			}
			handle.Cancel()
			w.WriteHeader(http.StatusNoContent)
		})

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", servePort),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			zap.L().Info("status server listening", zap.Int("port", servePort))
			errCh <- srv.ListenAndServe()
		}()

		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
			return nil
		case err := <-errCh:
			if err != nil && err != http.ErrServerClosed {
				return eris.Wrap(err, "status server")
			}
			return nil
		}
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
