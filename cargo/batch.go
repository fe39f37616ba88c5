package cargo

import (
	"fmt"
	"sort"
	"time"

	"github.com/pkg/errors"

	"brandseed/generator"
)

// Batch is a sealed, ordered group of brands submitted in one request.
type Batch struct {
	Index   int
	Records []generator.Brand
}

func (b Batch) FirstID() int64 {
	if len(b.Records) == 0 {
		return 0
	}
	return b.Records[0].ID
}

func (b Batch) LastID() int64 {
	if len(b.Records) == 0 {
		return 0
	}
	return b.Records[len(b.Records)-1].ID
}

func (b Batch) String() string {
	return fmt.Sprintf("batch %d (ids %d-%d)", b.Index, b.FirstID(), b.LastID())
}

// Outcome is the result of submitting one batch.
type Outcome struct {
	Index    int
	FirstID  int64
	LastID   int64
	Size     int
	Attempts int
	Err      error
	Duration time.Duration
}

func (o Outcome) OK() bool { return o.Err == nil }

// Sent reports whether the batch reached the handler at least once. A batch
// cancelled while queued, after an abort or interrupt, never does.
func (o Outcome) Sent() bool { return o.Attempts > 0 }

// Error returns the failure annotated with the batch boundaries, or nil.
func (o Outcome) Error() error {
	if o.Err == nil {
		return nil
	}
	return errors.Wrapf(o.Err, "batch %d (ids %d-%d)", o.Index, o.FirstID, o.LastID)
}

// Report lists every batch outcome of a run in dispatch order.
type Report struct {
	Outcomes []Outcome
}

func newReport(outcomes []Outcome) *Report {
	sorted := make([]Outcome, len(outcomes))
	copy(sorted, outcomes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })
	return &Report{Outcomes: sorted}
}

func (r *Report) Batches() int { return len(r.Outcomes) }

// Attempted is the number of records in batches that were actually sent.
func (r *Report) Attempted() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Sent() {
			n += o.Size
		}
	}
	return n
}

// Confirmed is the number of records in batches the endpoint accepted.
func (r *Report) Confirmed() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.OK() {
			n += o.Size
		}
	}
	return n
}

// Failed lists the sent batches that did not succeed.
func (r *Report) Failed() []Outcome {
	var failed []Outcome
	for _, o := range r.Outcomes {
		if o.Sent() && !o.OK() {
			failed = append(failed, o)
		}
	}
	return failed
}

// Unsent lists the sealed batches that were never submitted.
func (r *Report) Unsent() []Outcome {
	var unsent []Outcome
	for _, o := range r.Outcomes {
		if !o.Sent() {
			unsent = append(unsent, o)
		}
	}
	return unsent
}
