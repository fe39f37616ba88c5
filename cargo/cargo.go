package cargo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"brandseed/generator"
)

const DefaultTimeout = 30 * time.Second

var (
	ErrClosed  = errors.New("cargo closed")
	ErrAborted = errors.New("cargo aborted after batch failure")
)

// FlushFunc submits one sealed batch.
type FlushFunc func(ctx context.Context, batch Batch) error

// Observer is notified after every batch submission completes.
type Observer interface {
	BatchFlushed(Outcome)
}

type ObserverFunc func(Outcome)

func (f ObserverFunc) BatchFlushed(o Outcome) { f(o) }

type Option func(*Cargo)

func WithPolicy(p Policy) Option { return func(c *Cargo) { c.policy = p } }

func WithRetry(r Retrier) Option {
	return func(c *Cargo) {
		if r != nil {
			c.retrier = r
		}
	}
}

// WithTimeout bounds each submission attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *Cargo) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithConcurrency allows up to n batches in flight. 1 keeps submissions
// strictly sequential.
func WithConcurrency(n int) Option {
	return func(c *Cargo) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithRateLimit caps batch submissions per second. Zero disables the limit.
func WithRateLimit(perSecond float64) Option {
	return func(c *Cargo) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

func WithLogger(l *logrus.Entry) Option {
	return func(c *Cargo) {
		if l != nil {
			c.log = l
		}
	}
}

func WithObserver(o Observer) Option {
	return func(c *Cargo) {
		if o != nil {
			c.observers = append(c.observers, o)
		}
	}
}

// Cargo buffers brands into batches of a fixed size and hands each full
// batch to its FlushFunc. Close flushes the trailing partial batch.
type Cargo struct {
	mu        sync.Mutex
	batch     []generator.Brand
	batchSize int
	seq       int

	timeout     time.Duration
	handler     FlushFunc
	policy      Policy
	retrier     Retrier
	limiter     *rate.Limiter
	concurrency int
	observers   []Observer
	log         *logrus.Entry

	state    State
	closing  bool
	outcomes []Outcome

	group  *errgroup.Group
	runCtx context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
	report    *Report
	closeErr  error
}

func New(size int, fn FlushFunc, opts ...Option) (*Cargo, error) {
	if size <= 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if fn == nil {
		return nil, fmt.Errorf("handler func cannot be empty")
	}

	c := &Cargo{
		batch:       make([]generator.Brand, 0, size),
		batchSize:   size,
		timeout:     DefaultTimeout,
		handler:     fn,
		retrier:     NoRetry(),
		concurrency: 1,
		log:         logrus.NewEntry(logrus.StandardLogger()),
		state:       Idle,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.WithField("component", "cargo")

	if c.concurrency > 1 {
		c.group = &errgroup.Group{}
		c.group.SetLimit(c.concurrency)
	}

	c.log.Debugf("cargo: initialized with batch size %d, timeout %v, policy %s", size, c.timeout, c.policy)
	return c, nil
}

func (c *Cargo) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Add appends one brand, submitting the buffer once it reaches the batch size.
func (c *Cargo) Add(ctx context.Context, item generator.Brand) error {
	c.mu.Lock()
	if err := c.checkOpenLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.state == Idle || c.state == Failed {
		c.state = Buffering
	}
	c.batch = append(c.batch, item)

	var sealed *Batch
	if len(c.batch) >= c.batchSize {
		sealed = c.sealLocked()
	}
	c.mu.Unlock()

	if sealed == nil {
		return nil
	}
	return c.dispatch(ctx, *sealed)
}

// Flush submits the current buffer, if it holds anything.
func (c *Cargo) Flush(ctx context.Context) error {
	c.mu.Lock()
	if err := c.checkOpenLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	sealed := c.sealLocked()
	c.mu.Unlock()

	if sealed == nil {
		return nil
	}
	return c.dispatch(ctx, *sealed)
}

// Close flushes the trailing partial batch, waits for in-flight submissions
// and returns the run report. Under AbortOnFailure the returned error
// aggregates every failed batch.
func (c *Cargo) Close(ctx context.Context) (*Report, error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closing = true
		var sealed *Batch
		if c.state != Aborted {
			sealed = c.sealLocked()
		}
		c.mu.Unlock()

		if sealed != nil {
			_ = c.dispatch(ctx, *sealed)
		}
		if c.group != nil {
			_ = c.group.Wait()
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.cancel != nil {
			c.cancel()
		}
		if c.state != Aborted {
			c.state = Done
		}
		c.report = newReport(c.outcomes)

		var result *multierror.Error
		if c.policy == AbortOnFailure {
			for _, o := range c.report.Failed() {
				result = multierror.Append(result, o.Error())
			}
		}
		c.closeErr = result.ErrorOrNil()
		c.log.Debugf("cargo: closed after %d batches", c.report.Batches())
	})
	return c.report, c.closeErr
}

func (c *Cargo) checkOpenLocked() error {
	if c.state == Aborted {
		return ErrAborted
	}
	if c.closing {
		return ErrClosed
	}
	return nil
}

func (c *Cargo) sealLocked() *Batch {
	if len(c.batch) == 0 {
		return nil
	}
	c.seq++
	b := &Batch{Index: c.seq, Records: c.batch}
	c.batch = make([]generator.Brand, 0, c.batchSize)
	c.state = Flushing
	return b
}

func (c *Cargo) dispatch(ctx context.Context, b Batch) error {
	if c.group == nil {
		if err := c.submit(ctx, b); err != nil && c.policy == AbortOnFailure {
			return errors.Wrapf(ErrAborted, "%s: %v", b, err)
		}
		return nil
	}

	c.mu.Lock()
	if c.runCtx == nil {
		c.runCtx, c.cancel = context.WithCancel(ctx)
	}
	runCtx := c.runCtx
	c.mu.Unlock()

	c.group.Go(func() error {
		_ = c.submit(runCtx, b)
		return nil
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Aborted {
		return ErrAborted
	}
	return nil
}

func (c *Cargo) submit(ctx context.Context, b Batch) error {
	start := time.Now()
	log := c.log.WithFields(logrus.Fields{
		"batch":    b.Index,
		"first_id": b.FirstID(),
		"last_id":  b.LastID(),
		"size":     len(b.Records),
	})
	log.Debug("cargo: flushing batch")

	attempts := 0
	var err error
	if c.limiter != nil {
		err = errors.Wrap(c.limiter.Wait(ctx), "rate limit")
	}
	if err == nil && ctx.Err() != nil {
		err = errors.Wrap(ctx.Err(), "not sent")
	}
	if err == nil {
		attempts, err = c.retrier.Do(ctx, func(ctx context.Context) error {
			sctx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()
			return c.handler(sctx, b)
		})
	}

	o := Outcome{
		Index:    b.Index,
		FirstID:  b.FirstID(),
		LastID:   b.LastID(),
		Size:     len(b.Records),
		Attempts: attempts,
		Err:      err,
		Duration: time.Since(start),
	}
	c.record(o)

	switch {
	case !o.Sent():
		log.WithError(err).Warn("cargo: batch not sent")
	case err != nil:
		log.WithError(err).WithField("attempts", attempts).Error("cargo: batch failed")
	default:
		log.WithField("attempts", attempts).Infof("cargo: batch of %d brands inserted", o.Size)
	}
	for _, obs := range c.observers {
		obs.BatchFlushed(o)
	}
	return err
}

func (c *Cargo) record(o Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.outcomes = append(c.outcomes, o)
	if c.state == Aborted {
		return
	}
	if o.Err == nil {
		c.state = Buffering
		return
	}
	if c.policy == AbortOnFailure {
		c.state = Aborted
		if c.cancel != nil {
			c.cancel()
		}
		return
	}
	c.state = Failed
}
