package compositor

import (
	"errors"
	"fmt"
)

// ErrTemplateNotFound is matched by every *TemplateNotFoundError.
var ErrTemplateNotFound = errors.New("template not found")

// TemplateNotFoundError reports the template path that could not be used.
type TemplateNotFoundError struct {
	Path string
	Err  error
}

func (e *TemplateNotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("template not found at %s: %v", e.Path, e.Err)
	}
	return "template not found at " + e.Path
}

func (e *TemplateNotFoundError) Is(target error) bool { return target == ErrTemplateNotFound }

func (e *TemplateNotFoundError) Unwrap() error { return e.Err }

// Stage names a step of Generate.
type Stage string

const (
	StageLoad    Stage = "load"
	StageOverlay Stage = "overlay"
	StageMerge   Stage = "merge"
	StageWrite   Stage = "write"
)

// StageError wraps the first failure of a generation with the stage it
// happened in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}
