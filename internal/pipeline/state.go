package pipeline

import (
	"errors"
	"fmt"

	"github.com/amishk599/jobscout/internal/model"
)

// Stage is one independently triggerable step of a posting's pipeline.
type Stage int

const (
	FetchJD Stage = iota
	Match
	Preview
	Export
	numStages
)

// Stages lists every stage in pipeline order.
var Stages = []Stage{FetchJD, Match, Preview, Export}

func (s Stage) String() string {
	switch s {
	case FetchJD:
		return "fetch_jd"
	case Match:
		return "match"
	case Preview:
		return "preview"
	case Export:
		return "export"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Status of one stage.
type Status int

const (
	Idle Status = iota
	Running
	Done
	Failed
)

func (s Status) String() string {
	switch s {
	case Running:
		return "running"
	case Done:
		return "done"
	case Failed:
		return "failed"
	}
	return "idle"
}

// StageState is the status of one stage plus the error text of its last
// failure.
type StageState struct {
	Status Status
	Err    string
}

// State is a snapshot of one posting's pipeline.
type State struct {
	Posting  model.Posting
	Stages   [numStages]StageState
	Match    *model.MatchResult
	Preview  *model.Document
	Artifact *model.Artifact
}

// Stage returns the state of st.
func (s State) Stage(st Stage) StageState {
	return s.Stages[st]
}

// HasJD reports whether the posting's JD has been fetched successfully.
func (s State) HasJD() bool {
	return s.Stages[FetchJD].Status == Done && s.Posting.JD != nil
}

var (
	// ErrStageBusy is returned when a stage is triggered while its previous
	// call is still outstanding.
	ErrStageBusy = errors.New("stage already running")
	// ErrUnknownPosting is returned for a hash that is not in the arena.
	ErrUnknownPosting = errors.New("unknown posting")
)

// PreconditionError reports a stage triggered without its inputs. It is
// user guidance, not a pipeline failure: no stage status changes.
type PreconditionError struct {
	Stage   Stage
	Missing string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s needs %s first", e.Stage, e.Missing)
}

// IsPrecondition reports whether err is a *PreconditionError.
func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}
