package ward

import (
	"fmt"

	"github.com/warp/hospital-engine/core"
)

// TargetFullError reports a ward with no free bed.
type TargetFullError struct {
	Ward string
}

func (e *TargetFullError) Error() string {
	return fmt.Sprintf("ward %s is full", e.Ward)
}

func (e *TargetFullError) Unwrap() error { return core.ErrConflict }

// NotInWardError reports a patient the named ward does not hold.
type NotInWardError struct {
	Patient core.SubjectID
	Ward    string
}

func (e *NotInWardError) Error() string {
	return fmt.Sprintf("patient %s is not in %s", e.Patient, e.Ward)
}

func (e *NotInWardError) Unwrap() error { return core.ErrInvalidInput }

// NotAssignedError reports a patient with no bed in any ward.
type NotAssignedError struct {
	Patient core.SubjectID
}

func (e *NotAssignedError) Error() string {
	return fmt.Sprintf("patient %s is not assigned to any ward", e.Patient)
}

func (e *NotAssignedError) Unwrap() error { return core.ErrNotFound }

// AlreadyAssignedError reports an assign for a patient holding a bed.
type AlreadyAssignedError struct {
	Patient core.SubjectID
	Ward    string
}

func (e *AlreadyAssignedError) Error() string {
	return fmt.Sprintf("patient %s is already assigned to %s", e.Patient, e.Ward)
}

func (e *AlreadyAssignedError) Unwrap() error { return core.ErrConflict }
