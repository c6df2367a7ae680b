package pipeline

import "fmt"

// Stage ordinals. Stage 0 means the pipeline has not started.
const (
	StageIntro   = 1
	StageClip    = 2
	StageBanner  = 3
	StageCompile = 4
)

var stageNames = map[int]string{
	StageIntro:   "intro",
	StageClip:    "clip",
	StageBanner:  "banner",
	StageCompile: "compile",
}

// StageName returns the human-readable label of a stage ordinal.
func StageName(stage int) string {
	if name, ok := stageNames[stage]; ok {
		return name
	}
	return "unknown"
}

// StageError attributes a failure to the stage that raised it.
type StageError struct {
	Stage int
	Name  string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %d (%s): %v", e.Stage, e.Name, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func newStageError(stage int, err error) *StageError {
	return &StageError{Stage: stage, Name: StageName(stage), Err: err}
}
