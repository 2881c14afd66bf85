package aging

import "time"

// Filter keeps the transactions booked to a selected account and stamps their age
// against asOf. Future-dated entries are handled according to policy and returned
// as flagged entries; they are never dropped.
func Filter(txns []Transaction, asOf time.Time, selection *AccountSelection, policy FutureDatedPolicy) ([]Transaction, []FlaggedEntry, error) {
	if asOf.IsZero() {
		return nil, nil, ErrReportDateRequired
	}
	if policy == "" {
		policy = PolicyFlag
	}
	asOf = DateOnly(asOf)
	kept := make([]Transaction, 0, len(txns))
	var flagged []FlaggedEntry
	for _, txn := range txns {
		if !selection.Contains(txn.AccountCode) {
			continue
		}
		txn.AgeDays = AgeDays(txn.EntryDate, asOf)
		if txn.AgeDays < 0 {
			if policy == PolicyReject {
				return nil, nil, &FutureDatedEntryError{Seq: txn.Seq, Vendor: txn.Vendor, EntryDate: txn.EntryDate, AsOf: asOf}
			}
			flagged = append(flagged, FlaggedEntry{
				Seq:         txn.Seq,
				Vendor:      txn.Vendor,
				AccountCode: txn.AccountCode,
				EntryDate:   txn.EntryDate,
				AgeDays:     txn.AgeDays,
			})
			txn.FutureDated = true
			if policy == PolicyCurrent {
				txn.AgeDays = 0
			}
		}
		kept = append(kept, txn)
	}
	return kept, flagged, nil
}

// AgeDays returns the whole calendar days between entry and asOf.
func AgeDays(entry, asOf time.Time) int {
	const secondsPerDay = 24 * 60 * 60
	return int((DateOnly(asOf).Unix() - DateOnly(entry).Unix()) / secondsPerDay)
}
