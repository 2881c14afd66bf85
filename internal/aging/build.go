package aging

// Result is the pure output of the projection, filter and aggregation stages.
type Result struct {
	Rows    []VendorSummaryRow
	Flagged []FlaggedEntry
	// Unattributed lists selected transactions with a blank vendor cell; they
	// belong to no vendor row.
	Unattributed []FlaggedEntry
}

// Build runs the full pipeline over a loaded ledger.
func Build(ledger Ledger, req Request) (Result, error) {
	buckets := req.Buckets
	if len(buckets) == 0 {
		buckets = DefaultBuckets()
	}
	if err := buckets.Validate(); err != nil {
		return Result{}, err
	}
	if req.AsOf.IsZero() {
		return Result{}, ErrReportDateRequired
	}
	txns, err := Project(ledger, req.Mapping)
	if err != nil {
		return Result{}, err
	}
	filtered, flagged, err := Filter(txns, req.AsOf, req.Accounts, req.Policy)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Rows:         Aggregate(filtered, req.Accounts, buckets),
		Flagged:      flagged,
		Unattributed: unattributed(filtered),
	}, nil
}

func unattributed(txns []Transaction) []FlaggedEntry {
	var out []FlaggedEntry
	for _, txn := range txns {
		if txn.Vendor != "" {
			continue
		}
		out = append(out, FlaggedEntry{
			Seq:         txn.Seq,
			AccountCode: txn.AccountCode,
			EntryDate:   txn.EntryDate,
			AgeDays:     txn.AgeDays,
		})
	}
	return out
}
