package forecast

import "fmt"

// TrainingError reports that a model could not be trained because the data
// was insufficient or degenerate.
type TrainingError struct {
	Model  string
	Reason string
	Err    error
}

func (e *TrainingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("train %s: %s: %v", e.Model, e.Reason, e.Err)
	}
	return fmt.Sprintf("train %s: %s", e.Model, e.Reason)
}

func (e *TrainingError) Unwrap() error {
	return e.Err
}
