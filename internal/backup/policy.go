package backup

import (
	"errors"
	"fmt"
)

// Ref names a cross-reference followed during restore.
type Ref string

const (
	RefTenantOwner       Ref = "tenant.owner"
	RefTenantSubTeacher  Ref = "tenant.sub_teacher"
	RefBatchTeacher      Ref = "batch.teacher"
	RefStudentBatch      Ref = "student.batch"
	RefPaymentStudent    Ref = "payment.student"
	RefAttendanceStudent Ref = "attendance.student"
	RefAttendanceBatch   Ref = "attendance.batch"
	RefAttendanceMarker  Ref = "attendance.marker"
	RefPaperUploader     Ref = "paper.uploader"
)

// Outcome is what the reconciler does with a reference.
type Outcome int

const (
	// Use the resolved target.
	Use Outcome = iota
	// UseFallback substitutes the tenant owner.
	UseFallback
	// Clear keeps the row and leaves the reference empty.
	Clear
	// SkipRow discards the row without error.
	SkipRow
	// Abort fails the whole restore.
	Abort
)

func (o Outcome) String() string {
	switch o {
	case Use:
		return "use"
	case UseFallback:
		return "fallback"
	case Clear:
		return "clear"
	case SkipRow:
		return "skip"
	case Abort:
		return "abort"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Rule is the missing-reference behavior for one Ref.
type Rule struct {
	// Fallback allows substituting the tenant owner.
	Fallback bool
	// Missing applies when the reference is unresolved and no fallback
	// is allowed or available.
	Missing Outcome
}

// Policy is the decision table for unresolved references.
var Policy = map[Ref]Rule{
	RefTenantOwner:       {Missing: Abort},
	RefTenantSubTeacher:  {Missing: Clear},
	RefBatchTeacher:      {Missing: Clear},
	RefStudentBatch:      {Missing: Clear},
	RefPaymentStudent:    {Missing: SkipRow},
	RefAttendanceStudent: {Missing: SkipRow},
	RefAttendanceBatch:   {Missing: SkipRow},
	RefAttendanceMarker:  {Fallback: true, Missing: SkipRow},
	RefPaperUploader:     {Fallback: true, Missing: Clear},
}

// Decide returns the outcome for ref given whether it resolved and whether
// a fallback target exists. Unknown refs are skipped.
func Decide(ref Ref, resolved, fallbackAvailable bool) Outcome {
	if resolved {
		return Use
	}
	rule, ok := Policy[ref]
	if !ok {
		return SkipRow
	}
	if rule.Fallback && fallbackAvailable {
		return UseFallback
	}
	return rule.Missing
}

// ErrUnresolvedReference is wrapped by ReferenceError.
var ErrUnresolvedReference = errors.New("unresolved required reference")

// ReferenceError reports a required reference that could not be resolved.
type ReferenceError struct {
	Ref Ref
	Key string
}

func (e *ReferenceError) Error() string {
	if e.Ref == RefTenantOwner {
		return fmt.Sprintf("tenant owner not found: no user with phone %q", e.Key)
	}
	return fmt.Sprintf("%s %q not found", e.Ref, e.Key)
}

func (e *ReferenceError) Unwrap() error { return ErrUnresolvedReference }
