// Package profile holds report profiles: the saved answers to which columns
// carry which field, which accounts to age, the report date and the output.
package profile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/odyssey-erp/odyssey-aging/internal/aging"
)

// EnvPrefix prefixes environment overrides, e.g. AGING_AS_OF or AGING_MAPPING_VENDOR_NAME.
const EnvPrefix = "AGING"

const (
	SourceFolder   = "folder"
	SourceUpload   = "upload"
	SourcePostgres = "postgres"
)

// ErrInvalidProfile wraps every validation failure of a profile.
var ErrInvalidProfile = errors.New("profile: invalid")

// Mapping assigns 1-based column positions to the ledger fields.
type Mapping struct {
	VendorName   int `mapstructure:"vendor_name" json:"vendor_name" validate:"min=1"`
	EntryDate    int `mapstructure:"entry_date" json:"entry_date" validate:"min=1"`
	DebitAmount  int `mapstructure:"debit_amount" json:"debit_amount" validate:"min=1"`
	CreditAmount int `mapstructure:"credit_amount" json:"credit_amount" validate:"min=1"`
	AccountName  int `mapstructure:"account_name" json:"account_name" validate:"min=1"`
	AccountCode  int `mapstructure:"account_code" json:"account_code" validate:"min=1"`
}

// Bucket is a configured aging range; max_days of -1 leaves it open-ended.
type Bucket struct {
	Name    string `mapstructure:"name" json:"name" validate:"required"`
	MinDays int    `mapstructure:"min_days" json:"min_days" validate:"min=0"`
	MaxDays int    `mapstructure:"max_days" json:"max_days" validate:"min=-1"`
}

// Profile is a complete, non-interactive description of one report run.
type Profile struct {
	Source   string   `mapstructure:"source" json:"source,omitempty" validate:"omitempty,oneof=folder upload postgres"`
	Folder   string   `mapstructure:"folder" json:"folder,omitempty" validate:"required_if=Source folder"`
	Output   string   `mapstructure:"output" json:"output,omitempty"`
	Format   string   `mapstructure:"format" json:"format,omitempty" validate:"omitempty,oneof=xlsx csv pdf json"`
	AsOf     string   `mapstructure:"as_of" json:"as_of" validate:"required,datetime=2006-01-02"`
	Accounts []string `mapstructure:"accounts" json:"accounts" validate:"dive,required"`
	Mapping  *Mapping `mapstructure:"mapping" json:"mapping,omitempty" validate:"required_unless=Source postgres"`
	Buckets  []Bucket `mapstructure:"buckets" json:"buckets,omitempty" validate:"omitempty,dive"`
	Policy   string   `mapstructure:"policy" json:"policy,omitempty" validate:"omitempty,oneof=flag current reject"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

var keys = []string{
	"source", "folder", "output", "format", "as_of", "accounts", "policy",
	"mapping.vendor_name", "mapping.entry_date", "mapping.debit_amount",
	"mapping.credit_amount", "mapping.account_name", "mapping.account_code",
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("source", SourceFolder)
	v.SetDefault("format", "xlsx")
	v.SetDefault("policy", string(aging.PolicyFlag))
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range keys {
		_ = v.BindEnv(key)
	}
	return v
}

// Load reads a YAML, TOML or JSON profile; AGING_* variables override file values.
// An empty path reads the profile from the environment alone.
func Load(path string) (Profile, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Profile{}, fmt.Errorf("profile: read %s: %w", path, err)
		}
	}
	var p Profile
	if err := v.Unmarshal(&p); err != nil {
		return Profile{}, fmt.Errorf("profile: decode: %w", err)
	}
	if p.Mapping != nil && *p.Mapping == (Mapping{}) {
		p.Mapping = nil
	}
	return p, nil
}

// Save writes the profile so a run can be repeated; the format follows the extension.
func Save(path string, p Profile) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("profile: mkdir: %w", err)
	}
	v := viper.New()
	v.Set("source", p.Source)
	v.Set("folder", p.Folder)
	v.Set("output", p.Output)
	v.Set("format", p.Format)
	v.Set("as_of", p.AsOf)
	v.Set("accounts", p.Accounts)
	v.Set("policy", p.Policy)
	if p.Mapping != nil {
		v.Set("mapping", map[string]int{
			"vendor_name":   p.Mapping.VendorName,
			"entry_date":    p.Mapping.EntryDate,
			"debit_amount":  p.Mapping.DebitAmount,
			"credit_amount": p.Mapping.CreditAmount,
			"account_name":  p.Mapping.AccountName,
			"account_code":  p.Mapping.AccountCode,
		})
	}
	if len(p.Buckets) > 0 {
		buckets := make([]map[string]any, 0, len(p.Buckets))
		for _, b := range p.Buckets {
			buckets = append(buckets, map[string]any{"name": b.Name, "min_days": b.MinDays, "max_days": b.MaxDays})
		}
		v.Set("buckets", buckets)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("profile: write %s: %w", path, err)
	}
	return nil
}

// Validate checks field constraints and the bucket partition.
func (p Profile) Validate() error {
	if err := validate.Struct(p); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidProfile, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	if len(p.Buckets) > 0 {
		if err := p.BucketSet().Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidProfile, err)
		}
	}
	return nil
}

// FieldMapping converts the column mapping; nil when the profile has none.
func (p Profile) FieldMapping() aging.FieldMapping {
	if p.Mapping == nil {
		return nil
	}
	m := p.Mapping
	return aging.FieldMapping{
		aging.FieldVendorName:   m.VendorName,
		aging.FieldEntryDate:    m.EntryDate,
		aging.FieldDebitAmount:  m.DebitAmount,
		aging.FieldCreditAmount: m.CreditAmount,
		aging.FieldAccountName:  m.AccountName,
		aging.FieldAccountCode:  m.AccountCode,
	}
}

// BucketSet converts configured buckets; empty means the default set.
func (p Profile) BucketSet() aging.BucketSet {
	if len(p.Buckets) == 0 {
		return aging.DefaultBuckets()
	}
	set := make(aging.BucketSet, 0, len(p.Buckets))
	for _, b := range p.Buckets {
		set = append(set, aging.Bucket{Name: b.Name, MinDays: b.MinDays, MaxDays: b.MaxDays})
	}
	return set
}

// Request validates the profile and turns it into an aging request. fallback
// supplies the mapping when the profile carries none.
func (p Profile) Request(fallback aging.FieldMapping) (aging.Request, error) {
	if err := p.Validate(); err != nil {
		return aging.Request{}, err
	}
	asOf, err := time.Parse(time.DateOnly, p.AsOf)
	if err != nil {
		return aging.Request{}, fmt.Errorf("%w: as_of: %w", ErrInvalidProfile, err)
	}
	policy, err := aging.ParseFutureDatedPolicy(p.Policy)
	if err != nil {
		return aging.Request{}, fmt.Errorf("%w: %w", ErrInvalidProfile, err)
	}
	mapping := p.FieldMapping()
	if mapping == nil {
		mapping = fallback
	}
	return aging.Request{
		AsOf:     asOf,
		Mapping:  mapping,
		Accounts: aging.NewAccountSelection(p.Accounts...),
		Buckets:  p.BucketSet(),
		Policy:   policy,
	}, nil
}

// FromMapping builds a profile mapping from field positions.
func FromMapping(m aging.FieldMapping) *Mapping {
	return &Mapping{
		VendorName:   m[aging.FieldVendorName],
		EntryDate:    m[aging.FieldEntryDate],
		DebitAmount:  m[aging.FieldDebitAmount],
		CreditAmount: m[aging.FieldCreditAmount],
		AccountName:  m[aging.FieldAccountName],
		AccountCode:  m[aging.FieldAccountCode],
	}
}
