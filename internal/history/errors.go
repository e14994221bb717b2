package history

import "fmt"

// DataSourceError reports that the historical table could not be read: the
// source is missing or unreadable, required columns are absent, or a value is
// malformed.
type DataSourceError struct {
	Source string
	Op     string
	Err    error
}

func (e *DataSourceError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("history: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("history %s: %s: %v", e.Source, e.Op, e.Err)
}

func (e *DataSourceError) Unwrap() error {
	return e.Err
}
