package scheduling

import (
	"errors"
	"fmt"
)

// ErrSnapshotFetch marks an upstream failure while loading a patient's
// schedule snapshot. Unlike local matching errors it must propagate to the
// caller: silently treating it as "no prior appointments" would
// under-enforce spacing rules. Callers may retry.
var ErrSnapshotFetch = errors.New("scheduling: patient snapshot fetch failed")

// snapshotFetchError wraps the vendor/cache error behind ErrSnapshotFetch
// so errors.Is works while the cause stays inspectable.
func snapshotFetchError(err error) error {
	return fmt.Errorf("%w: %w", ErrSnapshotFetch, err)
}

// IsRetryable reports whether the caller may safely retry the operation.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrSnapshotFetch) || errors.Is(err, ErrFollowUpFetch)
}
