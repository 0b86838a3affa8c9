package corpus

import "fmt"

// MissingRowError reports keys that were selected earlier but are no longer
// present at batch-fetch time. Callers must treat this as fatal for the
// batch; dropping rows silently would desynchronize images from labels.
type MissingRowError struct {
	Keys []int64
}

func (e *MissingRowError) Error() string {
	return fmt.Sprintf("corpus rows missing for keys %v", e.Keys)
}
