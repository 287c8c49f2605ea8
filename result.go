package pathfit

import (
	"github.com/pathfit/pathfit/pathgen"
	"github.com/pathfit/pathfit/scene"
)

// StageRecord captures one stage of a progressive run.
type StageRecord struct {
	Stage  int          // 1-based stage number
	Added  int          // shapes this stage added
	Total  int          // cumulative shape count after the stage
	Label  string       // cumulative counts string, e.g. "1,1" after stage 2
	Init   pathgen.Mode // how the stage's shapes were placed
	Free   bool         // earlier shapes stayed trainable
	Iters  int          // optimization iterations run
	Losses []float64    // loss per iteration
}

// FinalLoss returns the stage's last recorded loss, or 0 if the stage
// ran no iterations.
func (r StageRecord) FinalLoss() float64 {
	if len(r.Losses) == 0 {
		return 0
	}
	return r.Losses[len(r.Losses)-1]
}

// Result is the outcome of a fitting run.
type Result struct {
	Stages []StageRecord
	Scene  *scene.Scene // the optimized scene, owned by the caller
	RunDir string       // output directory, "" when persistence was off
}

// FinalLoss returns the last stage's final loss.
func (r *Result) FinalLoss() float64 {
	if len(r.Stages) == 0 {
		return 0
	}
	return r.Stages[len(r.Stages)-1].FinalLoss()
}

// TotalShapes returns the number of shapes in the fitted scene.
func (r *Result) TotalShapes() int {
	if len(r.Stages) == 0 {
		return 0
	}
	return r.Stages[len(r.Stages)-1].Total
}
