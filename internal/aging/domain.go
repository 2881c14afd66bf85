package aging

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Field names a logical ledger column required by the projector.
type Field string

const (
	FieldVendorName   Field = "vendor_name"
	FieldEntryDate    Field = "entry_date"
	FieldDebitAmount  Field = "debit_amount"
	FieldCreditAmount Field = "credit_amount"
	FieldAccountName  Field = "account_name"
	FieldAccountCode  Field = "account_code"
)

// RequiredFields lists every field a mapping must resolve, in prompt order.
var RequiredFields = []Field{
	FieldVendorName,
	FieldEntryDate,
	FieldDebitAmount,
	FieldCreditAmount,
	FieldAccountName,
	FieldAccountCode,
}

// FieldMapping resolves each logical field to a 1-based column position.
type FieldMapping map[Field]int

// RawRow is one ledger line as positional, untyped cells.
type RawRow []any

// Ledger is the materialised output of a ledger loader.
type Ledger struct {
	Header  []string
	Rows    []RawRow
	Sources []string
}

// Width returns the number of columns described by the header, or the widest row when headerless.
func (l Ledger) Width() int {
	if len(l.Header) > 0 {
		return len(l.Header)
	}
	width := 0
	for _, row := range l.Rows {
		if len(row) > width {
			width = len(row)
		}
	}
	return width
}

// Transaction is the canonical projection of a raw ledger row.
type Transaction struct {
	Vendor      string
	AccountCode string
	AccountName string
	EntryDate   time.Time
	Amount      decimal.Decimal
	AgeDays     int
	FutureDated bool
	// Seq is the position of the row in the loaded ledger.
	Seq int
}

// FutureDatedPolicy controls how entries dated after the report date are treated.
type FutureDatedPolicy string

const (
	// PolicyFlag keeps the entry in balances but leaves it out of bucket attribution.
	PolicyFlag FutureDatedPolicy = "flag"
	// PolicyCurrent treats the entry as age zero.
	PolicyCurrent FutureDatedPolicy = "current"
	// PolicyReject aborts the run.
	PolicyReject FutureDatedPolicy = "reject"
)

// ParseFutureDatedPolicy normalises a policy name, defaulting to PolicyFlag.
func ParseFutureDatedPolicy(raw string) (FutureDatedPolicy, error) {
	switch FutureDatedPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", PolicyFlag:
		return PolicyFlag, nil
	case PolicyCurrent:
		return PolicyCurrent, nil
	case PolicyReject:
		return PolicyReject, nil
	default:
		return "", ErrUnknownPolicy
	}
}

// FlaggedEntry records a future-dated transaction surfaced by the filter.
type FlaggedEntry struct {
	Seq         int       `json:"seq"`
	Vendor      string    `json:"vendor"`
	AccountCode string    `json:"account_code"`
	EntryDate   time.Time `json:"entry_date"`
	AgeDays     int       `json:"age_days"`
}

// BucketAmount is one aging column of a vendor row. Set is false when no
// transaction of the vendor fell into the bucket.
type BucketAmount struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
	Set    bool            `json:"set"`
}

// AccountBalance is the final replayed balance of one selected account.
type AccountBalance struct {
	Code    string          `json:"code"`
	Balance decimal.Decimal `json:"balance"`
}

// VendorSummaryRow is the report line emitted for a single vendor.
type VendorSummaryRow struct {
	SerialNo     int              `json:"serial_no"`
	Vendor       string           `json:"vendor"`
	AccountCodes []string         `json:"account_codes"`
	AccountNames []string         `json:"account_names"`
	Buckets      []BucketAmount   `json:"buckets"`
	Balances     []AccountBalance `json:"balances"`
	Total        decimal.Decimal  `json:"total"`
}

// BucketValue returns the amount stored under the named bucket.
func (r VendorSummaryRow) BucketValue(name string) (decimal.Decimal, bool) {
	for _, b := range r.Buckets {
		if b.Name == name {
			return b.Amount, b.Set
		}
	}
	return decimal.Zero, false
}

// Balance returns the final balance of an account code.
func (r VendorSummaryRow) Balance(code string) (decimal.Decimal, bool) {
	for _, b := range r.Balances {
		if b.Code == code {
			return b.Balance, true
		}
	}
	return decimal.Zero, false
}

// Request carries the validated caller input for one report run.
type Request struct {
	AsOf     time.Time
	Mapping  FieldMapping
	Accounts *AccountSelection
	Buckets  BucketSet
	Policy   FutureDatedPolicy
}

// Report is the full result of a generation run.
type Report struct {
	ID          uuid.UUID          `json:"id"`
	AsOf        time.Time          `json:"as_of"`
	GeneratedAt time.Time          `json:"generated_at"`
	Buckets     BucketSet          `json:"buckets"`
	Accounts    []string           `json:"accounts"`
	Rows        []VendorSummaryRow `json:"rows"`
	Flagged     []FlaggedEntry     `json:"flagged,omitempty"`
	// Unattributed entries have no vendor and appear in no row.
	Unattributed []FlaggedEntry `json:"unattributed,omitempty"`
	Sources      []string       `json:"sources,omitempty"`
}

// Columns returns the fixed output header for the report.
func (r Report) Columns() []string {
	return Columns(r.Buckets)
}

// Columns builds the output header for a bucket set.
func Columns(buckets BucketSet) []string {
	cols := make([]string, 0, len(buckets)+5)
	cols = append(cols, "Serial No.", "Vendor Name", "Account Code", "Account Name")
	for _, b := range buckets {
		cols = append(cols, b.Name)
	}
	return append(cols, "Total Amount")
}

// DateOnly truncates t to midnight UTC of its calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
