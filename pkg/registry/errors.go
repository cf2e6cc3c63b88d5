package registry

import "fmt"

// ModelNotConfiguredError is returned when a request names a model the
// registry does not know. The known IDs are included so the client-facing
// 404 can list what is available.
type ModelNotConfiguredError struct {
	Requested string
	Known     []string
}

func (e *ModelNotConfiguredError) Error() string {
	return fmt.Sprintf("model %q not configured, available: %v", e.Requested, e.Known)
}
