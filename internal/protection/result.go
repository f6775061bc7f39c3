package protection

import "fmt"

// StepResult reports one best-effort step of a remediation or enforcement.
type StepResult struct {
	Step      string
	Attempted bool
	Err       error
	Reason    string
}

func (r StepResult) OK() bool {
	return r.Attempted && r.Err == nil
}

func (r StepResult) String() string {
	switch {
	case !r.Attempted:
		return fmt.Sprintf("%s: skipped (%s)", r.Step, r.Reason)
	case r.Err != nil:
		return fmt.Sprintf("%s: failed: %v", r.Step, r.Err)
	default:
		return r.Step + ": ok"
	}
}

func Skipped(step, reason string) StepResult {
	return StepResult{Step: step, Reason: reason}
}

func Attempted(step string, err error) StepResult {
	return StepResult{Step: step, Attempted: true, Err: err}
}
