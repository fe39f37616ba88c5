package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"brandseed/cargo"
	"brandseed/config"
	"brandseed/generator"
	"brandseed/logging"
	"brandseed/metrics"
	"brandseed/pipeline"
	"brandseed/sink"
)

func newLoadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Generate brands and submit them in batches",
		Args:  cobra.NoArgs,
		RunE:  runLoad,
	}

	f := cmd.Flags()
	f.Int("count", config.DefaultCount, "number of brands to generate")
	f.Int("batch-size", config.DefaultBatchSize, "brands per bulk request")
	f.String("url", config.DefaultURL, "bulk-insert endpoint")
	f.String("api-key", "", "value for the X-API-Key header")
	f.Duration("timeout", cargo.DefaultTimeout, "per-request timeout")
	f.Int("retries", 0, "extra attempts for a failed batch")
	f.Duration("retry-delay", time.Second, "wait between attempts (base delay for exponential backoff)")
	f.Duration("max-retry-delay", 30*time.Second, "upper bound for exponential backoff")
	f.String("backoff", "fixed", "retry strategy: fixed or exponential")
	f.String("on-failure", "continue", "after a failed batch: continue or abort")
	f.Int("concurrency", 1, "batches in flight at once")
	f.Float64("rate", 0, "max batches per second, 0 for unlimited")
	f.Int64("seed", 0, "seed for the text fields, 0 for a time-based seed")
	f.String("image-url", generator.DefaultImageURL, "image_url for every brand")
	f.String("report", "", "write a YAML run summary to this file")
	f.String("metrics-file", "", "write Prometheus metrics to this file on exit")
	f.Duration("progress-interval", 2*time.Second, "how often to log progress")
	f.String("sink", "http", "where batches go: http, elasticsearch or mongo")
	f.StringSlice("es-addresses", nil, "elasticsearch addresses")
	f.String("es-index", "", "elasticsearch index")
	f.String("mongo-uri", "", "mongo connection string")
	f.String("mongo-database", "", "mongo database")
	f.String("mongo-collection", "", "mongo collection")
	return cmd
}

func runLoad(cmd *cobra.Command, _ []string) error {
	v := viper.New()
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		return err
	}
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(v, path)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	runID := uuid.NewString()
	log := logger.WithField("run_id", runID)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	submit, closeSink, err := sink.Open(ctx, cfg, log)
	if err != nil {
		return errors.Wrap(err, "open sink")
	}
	defer func() {
		if err := closeSink(context.Background()); err != nil {
			log.WithError(err).Warn("closing sink")
		}
	}()

	loader, m, err := newLoader(cfg, submit, log)
	if err != nil {
		return err
	}

	genOpts := []generator.Option{generator.WithImageURL(cfg.ImageURL)}
	if cfg.Seed != 0 {
		genOpts = append(genOpts, generator.WithSeed(cfg.Seed))
	}
	gen := generator.New(cfg.Count, genOpts...)

	summary, runErr := pipeline.Run(ctx, gen, loader, pipeline.Options{
		RunID:            runID,
		ProgressInterval: cfg.ProgressInterval,
		Log:              logger.WithField("component", "pipeline"),
		OnGenerated:      m.RecordGenerated,
	})

	if cfg.Report != "" {
		if err := pipeline.WriteReport(cfg.Report, summary); err != nil {
			log.WithError(err).Error("writing report")
		}
	}
	if cfg.MetricsFile != "" {
		if err := m.WriteTextfile(cfg.MetricsFile); err != nil {
			log.WithError(err).Error("writing metrics")
		}
	}
	return runErr
}

func newLoader(cfg *config.Config, submit cargo.FlushFunc, log *logrus.Entry) (*cargo.Cargo, *metrics.Metrics, error) {
	policy, err := cargo.ParsePolicy(cfg.OnFailure)
	if err != nil {
		return nil, nil, err
	}
	retrier, err := cargo.NewRetrier(cfg.Backoff, cfg.Retries, cfg.RetryDelay, cfg.MaxRetryDelay)
	if err != nil {
		return nil, nil, err
	}

	m := metrics.New()
	loader, err := cargo.New(cfg.BatchSize, submit,
		cargo.WithPolicy(policy),
		cargo.WithRetry(retrier),
		cargo.WithTimeout(cfg.Timeout),
		cargo.WithConcurrency(cfg.Concurrency),
		cargo.WithRateLimit(cfg.Rate),
		cargo.WithLogger(log),
		cargo.WithObserver(m),
	)
	if err != nil {
		return nil, nil, errors.Wrap(err, "create loader")
	}
	return loader, m, nil
}
