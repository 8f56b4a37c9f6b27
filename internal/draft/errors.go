package draft

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means a removal targeted an item that is not in the pool.
	// The engine never does this; seeing it is an internal consistency bug.
	ErrNotFound = errors.New("item not in pool")
	// ErrInvalidAction means the chosen category had nothing left to draft.
	ErrInvalidAction = errors.New("chosen category is empty")
	// ErrNoLegalActions means every category is at its hard cap.
	ErrNoLegalActions = errors.New("no legal actions")
	// ErrNotDrafting is returned by PlayTurn outside an episode.
	ErrNotDrafting = errors.New("engine is not drafting")
)

// Severity separates penalize-and-continue conditions from ones that abort
// the episode.
type Severity int

const (
	Recoverable Severity = iota
	Fatal
)

func (s Severity) String() string {
	if s == Fatal {
		return "fatal"
	}
	return "recoverable"
}

// Error attaches the acting team and round to an engine failure.
type Error struct {
	Severity Severity
	Team     int
	Round    int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: team %d round %d: %v", e.Severity, e.Team, e.Round, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsFatal reports whether err must abort the current episode. Errors that are
// not *Error values are treated as fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Severity == Fatal
	}
	return true
}
