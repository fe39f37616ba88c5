package pipeline

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"brandseed/cargo"
)

// FailedRange identifies a batch an operator may need to re-submit. Unsent
// batches carry zero attempts.
type FailedRange struct {
	Batch    int    `yaml:"batch"`
	FirstID  int64  `yaml:"first_id"`
	LastID   int64  `yaml:"last_id"`
	Size     int    `yaml:"size"`
	Attempts int    `yaml:"attempts"`
	Error    string `yaml:"error"`
}

// Summary is the end-of-run account of what was generated and confirmed.
type Summary struct {
	RunID     string        `yaml:"run_id"`
	Generated int           `yaml:"generated"`
	Attempted int           `yaml:"attempted"`
	Confirmed int           `yaml:"confirmed"`
	Batches   int           `yaml:"batches"`
	Failed    []FailedRange `yaml:"failed,omitempty"`
	Unsent    []FailedRange `yaml:"unsent,omitempty"`
	Aborted   bool          `yaml:"aborted,omitempty"`
	Elapsed   string        `yaml:"elapsed"`
}

func (s *Summary) OK() bool { return len(s.Failed) == 0 && len(s.Unsent) == 0 && !s.Aborted }

func rangeOf(o cargo.Outcome) FailedRange {
	return FailedRange{
		Batch:    o.Index,
		FirstID:  o.FirstID,
		LastID:   o.LastID,
		Size:     o.Size,
		Attempts: o.Attempts,
		Error:    o.Err.Error(),
	}
}

func newSummary(runID string, generated int, report *cargo.Report, elapsed time.Duration) *Summary {
	s := &Summary{
		RunID:     runID,
		Generated: generated,
		Elapsed:   elapsed.Round(time.Millisecond).String(),
	}
	if report == nil {
		return s
	}
	s.Attempted = report.Attempted()
	s.Confirmed = report.Confirmed()
	s.Batches = report.Batches()
	for _, o := range report.Failed() {
		s.Failed = append(s.Failed, rangeOf(o))
	}
	for _, o := range report.Unsent() {
		s.Unsent = append(s.Unsent, rangeOf(o))
	}
	return s
}

func (s *Summary) log(log *logrus.Entry) {
	for _, f := range s.Failed {
		log.WithFields(logrus.Fields{
			"batch":    f.Batch,
			"first_id": f.FirstID,
			"last_id":  f.LastID,
			"attempts": f.Attempts,
		}).Warnf("failed batch: %s", f.Error)
	}
	for _, u := range s.Unsent {
		log.WithFields(logrus.Fields{
			"batch":    u.Batch,
			"first_id": u.FirstID,
			"last_id":  u.LastID,
		}).Warn("batch never sent")
	}

	entry := log.WithFields(logrus.Fields{
		"generated": s.Generated,
		"attempted": s.Attempted,
		"confirmed": s.Confirmed,
		"batches":   s.Batches,
		"failed":    len(s.Failed),
		"unsent":    len(s.Unsent),
		"elapsed":   s.Elapsed,
	})
	if s.Aborted {
		entry.Error("bulk insert aborted")
		return
	}
	entry.Info("finished bulk inserting brands")
}

// WriteReport saves the summary as YAML.
func WriteReport(path string, s *Summary) error {
	out, err := yaml.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "encode report")
	}
	return errors.Wrapf(os.WriteFile(path, out, 0o644), "write report %s", path)
}
