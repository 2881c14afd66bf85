package aging

import "sort"

// Account is a distinct (code, name) pair found in a ledger.
type Account struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Lines int    `json:"lines"`
}

// Catalog lists the distinct account code/name pairs of a ledger ordered by code
// then name, so callers can offer them for selection. Only the code and name
// columns of the mapping need to be valid.
func Catalog(ledger Ledger, mapping FieldMapping) ([]Account, error) {
	width := ledger.Width()
	for _, field := range []Field{FieldAccountCode, FieldAccountName} {
		idx := mapping[field]
		if idx < 1 || idx > width {
			return nil, &FieldMappingError{Field: field, Index: idx, Width: width}
		}
	}
	codeIdx := mapping[FieldAccountCode] - 1
	nameIdx := mapping[FieldAccountName] - 1

	type key struct{ code, name string }
	counts := make(map[key]int)
	for _, row := range ledger.Rows {
		if blankRow(row) {
			continue
		}
		var code, name string
		if codeIdx < len(row) {
			code = CanonicalCode(row[codeIdx])
		}
		if nameIdx < len(row) {
			name = cellText(row[nameIdx])
		}
		if code == "" {
			continue
		}
		counts[key{code, name}]++
	}
	accounts := make([]Account, 0, len(counts))
	for k, n := range counts {
		accounts = append(accounts, Account{Code: k.code, Name: k.name, Lines: n})
	}
	sort.Slice(accounts, func(i, j int) bool {
		if accounts[i].Code == accounts[j].Code {
			return accounts[i].Name < accounts[j].Name
		}
		return accounts[i].Code < accounts[j].Code
	})
	return accounts, nil
}
