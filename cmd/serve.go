package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"brandseed/indexstub"
	"brandseed/logging"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run an in-memory bulk-index endpoint that upserts brands by id",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	cmd.Flags().String("addr", ":8080", "listen address")
	cmd.Flags().IntSlice("fail-batches", nil, "answer 500 to these bulk-insert requests (1-based)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	level, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")
	logger, err := logging.New(level, format)
	if err != nil {
		return err
	}
	addr, _ := cmd.Flags().GetString("addr")
	fail, _ := cmd.Flags().GetIntSlice("fail-batches")

	stub := indexstub.New(
		indexstub.WithFailBatches(fail...),
		indexstub.WithLogger(logger.WithField("addr", addr)),
	)
	srv := &http.Server{
		Addr:              addr,
		Handler:           stub.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("serving bulk-insert on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "serve")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.WithField("brands", stub.Len()).Info("shutting down")
	return errors.Wrap(srv.Shutdown(shutdownCtx), "shutdown")
}
