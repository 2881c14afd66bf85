package aging

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Aggregate replays each vendor's transactions in entry-date order and produces
// one summary row per vendor, ordered by vendor name.
//
// After every transaction the total balance across all selected accounts is
// written into the bucket of that transaction's own age, replacing whatever an
// earlier transaction left there. A bucket therefore holds the running total as
// of the last transaction whose age falls into it. Transactions whose age is
// outside every bucket still move the balances. Transactions booked to codes
// outside the selection, or without a vendor, are ignored.
func Aggregate(txns []Transaction, selection *AccountSelection, buckets BucketSet) []VendorSummaryRow {
	rows := make([]VendorSummaryRow, 0)
	if selection.Len() == 0 {
		return rows
	}

	groups := make(map[string][]Transaction)
	vendors := make([]string, 0)
	for _, txn := range txns {
		if txn.Vendor == "" || !selection.Contains(txn.AccountCode) {
			continue
		}
		if _, ok := groups[txn.Vendor]; !ok {
			vendors = append(vendors, txn.Vendor)
		}
		groups[txn.Vendor] = append(groups[txn.Vendor], txn)
	}
	sort.Strings(vendors)

	codes := selection.Codes()
	for i, vendor := range vendors {
		row := aggregateVendor(vendor, groups[vendor], codes, buckets)
		row.SerialNo = i + 1
		rows = append(rows, row)
	}
	return rows
}

func aggregateVendor(vendor string, txns []Transaction, codes []string, buckets BucketSet) VendorSummaryRow {
	sort.SliceStable(txns, func(i, j int) bool {
		return txns[i].EntryDate.Before(txns[j].EntryDate)
	})

	balance := make(map[string]decimal.Decimal, len(codes))
	for _, code := range codes {
		balance[code] = decimal.Zero
	}
	values := make([]BucketAmount, len(buckets))
	for i, b := range buckets {
		values[i] = BucketAmount{Name: b.Name, Amount: decimal.Zero}
	}
	names := make(map[string]string)

	for _, txn := range txns {
		balance[txn.AccountCode] = balance[txn.AccountCode].Add(txn.Amount)
		if _, seen := names[txn.AccountCode]; !seen || names[txn.AccountCode] == "" {
			names[txn.AccountCode] = txn.AccountName
		}

		idx := buckets.Classify(txn.AgeDays)
		if idx < 0 {
			continue
		}
		values[idx] = BucketAmount{Name: buckets[idx].Name, Amount: sumBalances(balance, codes), Set: true}
	}

	row := VendorSummaryRow{
		Vendor:   vendor,
		Buckets:  values,
		Balances: make([]AccountBalance, 0, len(codes)),
		Total:    sumBalances(balance, codes),
	}
	for _, code := range codes {
		row.Balances = append(row.Balances, AccountBalance{Code: code, Balance: balance[code]})
	}
	row.AccountCodes = make([]string, 0, len(names))
	for code := range names {
		row.AccountCodes = append(row.AccountCodes, code)
	}
	sort.Strings(row.AccountCodes)
	row.AccountNames = make([]string, len(row.AccountCodes))
	for i, code := range row.AccountCodes {
		row.AccountNames[i] = names[code]
	}
	return row
}

func sumBalances(balance map[string]decimal.Decimal, codes []string) decimal.Decimal {
	total := decimal.Zero
	for _, code := range codes {
		total = total.Add(balance[code])
	}
	return total
}
