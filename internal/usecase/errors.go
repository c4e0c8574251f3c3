package usecase

import (
	"errors"
	"fmt"
)

// Pipeline stage names, shared by errors, log fields and metric labels.
const (
	StageGenerate       = "generate"
	StageWrite          = "write"
	StageSketchRead     = "sketch_read"
	StageSketch         = "sketch"
	StageNormalizeRead  = "normalize_read"
	StageNormalize      = "normalize"
	StageNormalizeWrite = "normalize_write"
	StageVerify         = "verify"
	StageExport         = "export"
	StagePublish        = "publish"
)

// ErrReassemblyStalled is returned when row groups are waiting to be written
// but the next expected index never arrives.
var ErrReassemblyStalled = errors.New("row group reassembly stalled")

// StageError ties a pipeline failure to the stage and the day or row group
// that caused it.
type StageError struct {
	Stage string
	Index int64
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s [%d]: %v", e.Stage, e.Index, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage string, index int64, err error) error {
	return &StageError{Stage: stage, Index: index, Err: err}
}
