// Package ledger loads raw general-ledger rows from spreadsheet folders and Postgres.
package ledger

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-aging/internal/aging"
)

type sheet struct {
	header []string
	rows   []aging.RawRow
}

type reader func(path string) (sheet, error)

var readers = map[string]reader{
	".csv":  readCSV,
	".xlsx": readXLSX,
	".xlsm": readXLSX,
}

// IsLedgerFile reports whether name matches the ledger file patterns (*.xls*, *.csv).
func IsLedgerFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".csv" || strings.HasPrefix(ext, ".xls")
}

// Loader reads every ledger file of a folder into one ledger.
type Loader struct {
	logger  *slog.Logger
	workers int
}

// NewLoader constructs a loader; a nil logger falls back to slog.Default.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger, workers: runtime.NumCPU()}
}

// ListFiles returns the ledger files of dir sorted by name.
func ListFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("ledger: list %s: %w", dir, err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), "~$") || !IsLedgerFile(entry.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// LoadFolder parses every ledger file in dir concurrently and concatenates the
// rows in file-name order. The header of the first readable file names the
// columns. Files in a format that cannot be parsed are logged and skipped;
// any other read failure aborts the load.
func (l *Loader) LoadFolder(ctx context.Context, dir string) (aging.Ledger, error) {
	files, err := ListFiles(dir)
	if err != nil {
		return aging.Ledger{}, err
	}

	sheets := make([]*sheet, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(l.workers, 1))
	for i, path := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			read, ok := readers[strings.ToLower(filepath.Ext(path))]
			if !ok {
				l.logger.Warn("skip ledger file", slog.String("path", path), slog.Any("error", ErrUnsupportedFormat))
				return nil
			}
			s, err := read(path)
			if err != nil {
				return &FileError{Path: path, Err: err}
			}
			sheets[i] = &s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return aging.Ledger{}, err
	}

	out, err := l.merge(files, sheets)
	if err != nil {
		return aging.Ledger{}, fmt.Errorf("%w in %s", err, dir)
	}
	l.logger.Info("loaded ledger",
		slog.String("dir", dir),
		slog.Int("files", len(out.Sources)),
		slog.Int("rows", len(out.Rows)))
	return out, nil
}

// merge concatenates parsed sheets in order; nil entries are skipped files.
// Columns are lined up by header name against the first sheet. A column that
// the first sheet lacks is appended to the combined header, and rows from
// sheets without it leave that cell empty.
func (l *Loader) merge(names []string, sheets []*sheet) (aging.Ledger, error) {
	var (
		out     aging.Ledger
		columns map[string]int
	)
	for i, s := range sheets {
		if s == nil {
			continue
		}
		out.Sources = append(out.Sources, filepath.Base(names[i]))
		if out.Header == nil {
			out.Header = slices.Clone(s.header)
			columns = columnIndex(out.Header)
			out.Rows = append(out.Rows, s.rows...)
			continue
		}
		if slices.Equal(out.Header[:min(len(out.Header), len(s.header))], s.header) {
			out.Rows = append(out.Rows, s.rows...)
			continue
		}

		target := make([]int, len(s.header))
		for j, key := range columnKeys(s.header) {
			idx, ok := columns[key]
			if !ok {
				idx = len(out.Header)
				out.Header = append(out.Header, s.header[j])
				columns[key] = idx
			}
			target[j] = idx
		}
		l.logger.Info("align ledger columns by header",
			slog.String("path", names[i]),
			slog.Any("header", s.header))
		for _, row := range s.rows {
			aligned := make(aging.RawRow, len(out.Header))
			for j, cell := range row {
				if j < len(target) {
					aligned[target[j]] = cell
				}
			}
			out.Rows = append(out.Rows, aligned)
		}
	}
	if len(out.Sources) == 0 {
		return aging.Ledger{}, ErrNoLedgerFiles
	}
	return out, nil
}

// columnKeys names each header cell; repeated names get an occurrence suffix
// so the n-th "Amount" of one file meets the n-th "Amount" of another.
func columnKeys(header []string) []string {
	seen := make(map[string]int, len(header))
	keys := make([]string, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		keys[i] = name + "\x00" + strconv.Itoa(seen[name])
		seen[name]++
	}
	return keys
}

func columnIndex(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, key := range columnKeys(header) {
		index[key] = i
	}
	return index
}

// FolderSource feeds a folder of ledger files to the aging service.
type FolderSource struct {
	Dir    string
	Loader *Loader
}

// NewFolderSource binds a folder to a loader.
func NewFolderSource(dir string, loader *Loader) FolderSource {
	return FolderSource{Dir: dir, Loader: loader}
}

// LoadLedger reads the folder.
func (s FolderSource) LoadLedger(ctx context.Context) (aging.Ledger, error) {
	loader := s.Loader
	if loader == nil {
		loader = NewLoader(nil)
	}
	return loader.LoadFolder(ctx, s.Dir)
}

// SourceName labels the source in metrics.
func (FolderSource) SourceName() string { return "folder" }

// CacheKey fingerprints the folder by file names, sizes and modification times.
// It returns an empty key when the folder cannot be listed.
func (s FolderSource) CacheKey() string {
	files, err := ListFiles(s.Dir)
	if err != nil || len(files) == 0 {
		return ""
	}
	h, _ := blake2b.New256(nil)
	abs, err := filepath.Abs(s.Dir)
	if err != nil {
		abs = s.Dir
	}
	_, _ = h.Write([]byte(abs))
	for _, path := range files {
		info, err := os.Stat(path)
		if err != nil {
			return ""
		}
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte(filepath.Base(path)))
		_, _ = h.Write([]byte(strconv.FormatInt(info.Size(), 10)))
		_, _ = h.Write([]byte(strconv.FormatInt(info.ModTime().UnixNano(), 10)))
	}
	return "folder:" + hex.EncodeToString(h.Sum(nil))
}
