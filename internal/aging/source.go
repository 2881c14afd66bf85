package aging

import "context"

// StaticSource serves an already materialised ledger, such as an upload.
type StaticSource struct {
	Ledger Ledger
	// Key identifies the ledger content; an empty key disables caching.
	Key  string
	Name string
}

// LoadLedger returns the held ledger.
func (s StaticSource) LoadLedger(ctx context.Context) (Ledger, error) {
	if err := ctx.Err(); err != nil {
		return Ledger{}, err
	}
	return s.Ledger, nil
}

// SourceName labels the source in metrics.
func (s StaticSource) SourceName() string {
	if s.Name == "" {
		return "static"
	}
	return s.Name
}

// Keyed returns a cacheable view of the source when it carries a key.
func (s StaticSource) Keyed() LedgerSource {
	if s.Key == "" {
		return s
	}
	return keyedStatic{s}
}

type keyedStatic struct{ StaticSource }

func (k keyedStatic) CacheKey() string { return k.Key }
