package aging

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrFieldMapping indicates a mapping index outside the row width.
	ErrFieldMapping = errors.New("aging: invalid field mapping")
	// ErrInvalidCell indicates a cell that cannot be read as its field type.
	ErrInvalidCell = errors.New("aging: invalid cell value")
	// ErrFutureDatedEntry indicates an entry dated after the report date under the reject policy.
	ErrFutureDatedEntry = errors.New("aging: entry dated after report date")
	// ErrEmptySelection indicates no account codes were selected.
	ErrEmptySelection = errors.New("aging: account selection is empty")
	// ErrInvalidBuckets indicates bucket ranges that do not partition [0, inf).
	ErrInvalidBuckets = errors.New("aging: buckets must partition [0, inf)")
	// ErrUnknownPolicy indicates an unsupported future-dated policy name.
	ErrUnknownPolicy = errors.New("aging: unknown future-dated policy")
	// ErrReportDateRequired indicates a missing as-of date.
	ErrReportDateRequired = errors.New("aging: report date is required")
)

// FieldMappingError describes the offending mapping entry.
type FieldMappingError struct {
	Field Field
	Index int
	Width int
}

func (e *FieldMappingError) Error() string {
	if e.Index == 0 {
		return fmt.Sprintf("aging: field %s is not mapped", e.Field)
	}
	return fmt.Sprintf("aging: field %s mapped to column %d, row width is %d", e.Field, e.Index, e.Width)
}

// Is reports ErrFieldMapping equivalence.
func (e *FieldMappingError) Is(target error) bool {
	return target == ErrFieldMapping
}

// CellError pinpoints a cell that failed conversion.
type CellError struct {
	Row   int
	Field Field
	Value any
	Err   error
}

func (e *CellError) Error() string {
	return fmt.Sprintf("aging: row %d field %s value %v: %v", e.Row, e.Field, e.Value, e.Err)
}

// Unwrap exposes the conversion error.
func (e *CellError) Unwrap() error {
	return e.Err
}

// Is reports ErrInvalidCell equivalence.
func (e *CellError) Is(target error) bool {
	return target == ErrInvalidCell
}

// FutureDatedEntryError is returned when the reject policy meets a future-dated entry.
type FutureDatedEntryError struct {
	Seq       int
	Vendor    string
	EntryDate time.Time
	AsOf      time.Time
}

func (e *FutureDatedEntryError) Error() string {
	return fmt.Sprintf("aging: row %d (%s) dated %s after report date %s",
		e.Seq, e.Vendor, e.EntryDate.Format(time.DateOnly), e.AsOf.Format(time.DateOnly))
}

// Is reports ErrFutureDatedEntry equivalence.
func (e *FutureDatedEntryError) Is(target error) bool {
	return target == ErrFutureDatedEntry
}
