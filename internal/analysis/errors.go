package analysis

import "fmt"

// AnalysisError reports a waveform the analyzer could not measure
type AnalysisError struct {
	Reason string
	Err    error
}

func (e *AnalysisError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("analysis failed: %s", e.Reason)
	}
	return fmt.Sprintf("analysis failed: %s: %v", e.Reason, e.Err)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}
