package infra

import "fmt"

// ExternalServiceError marks the revenue service as unreachable or reporting
// an unrecoverable fault code. It aborts the current reconciliation run — a
// partial run based on incomplete sales data would understate every debt.
type ExternalServiceError struct {
	Op     string // SOAP operation name
	Status int    // in-payload fault code, 0 when the failure was transport-level
	Err    error  // underlying transport/parse error, may be nil
}

func (e *ExternalServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rs: %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("rs: %s failed with status %d", e.Op, e.Status)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }
