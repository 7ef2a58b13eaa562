package domain

// ValidationError reports a required field that is missing or an enum value
// outside its closed set. It is detected before any write and never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + " " + e.Reason
}
