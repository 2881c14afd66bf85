package ledger

import (
	"bytes"
	"context"
	"encoding/hex"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/odyssey-erp/odyssey-aging/internal/aging"
)

// Upload is a ledger file received in memory.
type Upload struct {
	Name string
	Data []byte
}

// ParseUploads parses uploaded files in the given order into one ledger. Unlike
// folder loading, an upload in an unreadable format is an error: the caller
// chose to send it.
func (l *Loader) ParseUploads(ctx context.Context, uploads []Upload) (aging.Ledger, error) {
	names := make([]string, len(uploads))
	sheets := make([]*sheet, len(uploads))
	for i, up := range uploads {
		if err := ctx.Err(); err != nil {
			return aging.Ledger{}, err
		}
		names[i] = up.Name
		var (
			s   sheet
			err error
		)
		switch strings.ToLower(filepath.Ext(up.Name)) {
		case ".csv":
			s, err = parseCSV(bytes.NewReader(up.Data))
		case ".xlsx", ".xlsm":
			s, err = parseXLSX(bytes.NewReader(up.Data))
		default:
			err = ErrUnsupportedFormat
		}
		if err != nil {
			return aging.Ledger{}, &FileError{Path: up.Name, Err: err}
		}
		sheets[i] = &s
	}
	return l.merge(names, sheets)
}

// UploadKey fingerprints uploaded content for caching.
func UploadKey(uploads []Upload) string {
	if len(uploads) == 0 {
		return ""
	}
	h, _ := blake2b.New256(nil)
	for _, up := range uploads {
		_, _ = h.Write([]byte(up.Name))
		_, _ = h.Write([]byte{0})
		sum := blake2b.Sum256(up.Data)
		_, _ = h.Write(sum[:])
	}
	return "upload:" + hex.EncodeToString(h.Sum(nil))
}
