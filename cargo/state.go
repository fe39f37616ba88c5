package cargo

import (
	"strings"

	"github.com/pkg/errors"
)

// State is the loader's position in its run lifecycle.
type State int

const (
	Idle State = iota
	Buffering
	Flushing
	Failed
	Aborted
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Buffering:
		return "buffering"
	case Flushing:
		return "flushing"
	case Failed:
		return "failed"
	case Aborted:
		return "aborted"
	case Done:
		return "done"
	}
	return "unknown"
}

// Policy decides what happens after a batch fails.
type Policy int

const (
	ContinueOnFailure Policy = iota
	AbortOnFailure
)

func (p Policy) String() string {
	if p == AbortOnFailure {
		return "abort"
	}
	return "continue"
}

func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "continue":
		return ContinueOnFailure, nil
	case "abort":
		return AbortOnFailure, nil
	}
	return ContinueOnFailure, errors.Errorf("unknown failure policy %q", s)
}
