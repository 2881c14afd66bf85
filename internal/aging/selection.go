package aging

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/width"
)

// AccountSelection is an insertion-ordered set of canonical account codes.
type AccountSelection struct {
	codes []string
	index map[string]struct{}
}

// NewAccountSelection builds a selection from raw codes, skipping blanks and duplicates.
func NewAccountSelection(codes ...string) *AccountSelection {
	s := &AccountSelection{index: make(map[string]struct{}, len(codes))}
	for _, code := range codes {
		s.Add(code)
	}
	return s
}

// Add canonicalises and inserts a code. It reports whether the code was new.
func (s *AccountSelection) Add(code string) bool {
	canonical := CanonicalCode(code)
	if canonical == "" {
		return false
	}
	if s.index == nil {
		s.index = make(map[string]struct{})
	}
	if _, ok := s.index[canonical]; ok {
		return false
	}
	s.index[canonical] = struct{}{}
	s.codes = append(s.codes, canonical)
	return true
}

// Contains tests membership of an already canonical code.
func (s *AccountSelection) Contains(code string) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[code]
	return ok
}

// Codes returns the codes in insertion order.
func (s *AccountSelection) Codes() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.codes...)
}

// Len returns the number of selected codes.
func (s *AccountSelection) Len() int {
	if s == nil {
		return 0
	}
	return len(s.codes)
}

// CanonicalCode converts an account code cell into its comparable string form.
func CanonicalCode(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return width.Narrow.String(strings.TrimSpace(val))
	case []byte:
		return width.Narrow.String(strings.TrimSpace(string(val)))
	case int:
		return strconv.Itoa(val)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint:
		return strconv.FormatUint(uint64(val), 10)
	case uint32:
		return strconv.FormatUint(uint64(val), 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float32:
		return formatCodeFloat(float64(val))
	case float64:
		return formatCodeFloat(val)
	case decimal.Decimal:
		return val.String()
	case fmt.Stringer:
		return width.Narrow.String(strings.TrimSpace(val.String()))
	default:
		return width.Narrow.String(strings.TrimSpace(fmt.Sprint(val)))
	}
}

func formatCodeFloat(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
