package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"brandseed/cargo"
	"brandseed/generator"
)

// Source produces the brands to load.
type Source interface {
	Stream(ctx context.Context) <-chan generator.Brand
	Count() int
}

// Loader batches and submits brands; Close performs the final flush.
type Loader interface {
	Add(ctx context.Context, item generator.Brand) error
	Close(ctx context.Context) (*cargo.Report, error)
}

type Options struct {
	RunID            string
	ProgressInterval time.Duration
	Log              *logrus.Entry
	// OnGenerated is called once per brand taken from the source.
	OnGenerated func()
}

// Run feeds every brand from src into loader, closes the loader and
// summarizes the run. A non-nil error means the run was aborted or
// interrupted; batch failures under the continue policy only show up in
// the summary.
func Run(ctx context.Context, src Source, loader Loader, opts Options) (*Summary, error) {
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	log := opts.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("run_id", opts.RunID)

	start := time.Now()
	var generated atomic.Int64
	stop := startProgress(opts.ProgressInterval, &generated, src.Count(), log)

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	log.WithField("total", src.Count()).Info("starting bulk insert")
	var addErr error
	for b := range src.Stream(streamCtx) {
		generated.Add(1)
		if opts.OnGenerated != nil {
			opts.OnGenerated()
		}
		if err := loader.Add(ctx, b); err != nil {
			addErr = err
			break
		}
	}
	cancel()
	stop()

	report, closeErr := loader.Close(ctx)
	summary := newSummary(opts.RunID, int(generated.Load()), report, time.Since(start))

	var result *multierror.Error
	switch {
	case addErr == nil:
	case errors.Is(addErr, cargo.ErrAborted):
		summary.Aborted = true
	default:
		result = multierror.Append(result, errors.Wrap(addErr, "load brands"))
	}
	if closeErr != nil {
		summary.Aborted = true
		result = multierror.Append(result, closeErr)
	}
	if err := ctx.Err(); err != nil {
		summary.Aborted = true
		result = multierror.Append(result, errors.Wrap(err, "run interrupted"))
	}

	summary.log(log)
	return summary, result.ErrorOrNil()
}
