package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrNoLedgerFiles indicates the folder holds no readable ledger file.
	ErrNoLedgerFiles = errors.New("ledger: no readable ledger files")
	// ErrUnsupportedFormat marks files that match the ledger pattern but cannot be parsed.
	ErrUnsupportedFormat = errors.New("ledger: unsupported file format")
	// ErrRelationMissing is returned when the configured ledger relation does not exist.
	ErrRelationMissing = errors.New("ledger: relation missing")
)

// FileError reports which ledger file failed to load.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("ledger: read %s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }
