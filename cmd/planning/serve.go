package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"planning/internal/event"
	httpx "planning/internal/http"
	"planning/internal/jobs"
	"planning/internal/logging"

	"github.com/spf13/cobra"
)

func newServeCommand() *cobra.Command {
	var workerID string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the job worker and maintenance",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(true)
			if err != nil {
				return err
			}
			return serve(a, workerID)
		},
	}
	host, _ := os.Hostname()
	cmd.Flags().StringVar(&workerID, "worker-id", "worker-"+host, "Name this process uses when claiming jobs")
	return cmd
}

func serve(a *app, workerID string) error {
	log := logging.Component("server")

	r := httpx.NewRouter(a.cfg, a.auth, event.NewGormStore(a.db))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	worker := jobs.NewWorker(workerID, a.jobs, jobs.LogMailer{}, a.cfg.WorkerPollInterval)
	go worker.Run(ctx)

	maint := &jobs.Maintenance{Auth: a.auth, Jobs: a.jobs}
	if _, err := maint.Schedule(ctx, a.cfg.MaintenanceSchedule); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", a.cfg.HTTPAddr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		cancel()
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}
