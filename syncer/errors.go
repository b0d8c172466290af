package syncer

import (
	"fmt"
)

// Steps of a sync run
const (
	StepFetch         = "fetch"
	StepReconcile     = "reconcile"
	StepDefaultBranch = "default-branch"
	StepCurrentBranch = "current-branch"
	StepTags          = "tags"
	StepListBranches  = "list-branches"
	StepPrune         = "prune"
)

// StepError is returned when a step of the sync run fails
type StepError struct {
	Step string
	Ref  string
	Err  error
}

func (e *StepError) Error() string {
	if e.Ref != "" {
		return fmt.Sprintf("%s step failed ref:%s err:%v", e.Step, e.Ref, e.Err)
	}
	return fmt.Sprintf("%s step failed err:%v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// PruneWarning is recorded when a stale branch could not be deleted
type PruneWarning struct {
	Branch string
	Err    error
}

func (w *PruneWarning) Error() string {
	return fmt.Sprintf("unable to prune branch:%s err:%v", w.Branch, w.Err)
}

func (w *PruneWarning) Unwrap() error {
	return w.Err
}
