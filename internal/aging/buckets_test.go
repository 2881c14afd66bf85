package aging

import (
	"errors"
	"testing"
)

func TestDefaultBucketsPartitionNonNegativeAges(t *testing.T) {
	buckets := DefaultBuckets()
	if err := buckets.Validate(); err != nil {
		t.Fatalf("default buckets invalid: %v", err)
	}
	for age := 0; age <= 5000; age++ {
		hits := 0
		for _, b := range buckets {
			if b.Contains(age) {
				hits++
			}
		}
		if hits != 1 {
			t.Fatalf("age %d matched %d buckets", age, hits)
		}
	}
	if idx := buckets.Classify(1 << 30); buckets[idx].Name != "Over 3 years" {
		t.Fatalf("expected very old entries in the last bucket")
	}
}

func TestClassifyBoundaries(t *testing.T) {
	buckets := DefaultBuckets()
	cases := map[int]string{
		0:    "Within 1 month",
		30:   "Within 1 month",
		31:   "1-3 months",
		90:   "1-3 months",
		91:   "3-6 months",
		365:  "6-12 months",
		366:  "1-2 years",
		1095: "2-3 years",
		1096: "Over 3 years",
	}
	for age, want := range cases {
		idx := buckets.Classify(age)
		if idx < 0 || buckets[idx].Name != want {
			t.Fatalf("age %d: expected %s got index %d", age, want, idx)
		}
	}
	if buckets.Classify(-1) != -1 {
		t.Fatalf("negative ages must not classify")
	}
}

func TestBucketSetValidateRejectsBrokenRanges(t *testing.T) {
	cases := map[string]BucketSet{
		"empty":       {},
		"gap":         {{Name: "a", MinDays: 0, MaxDays: 10}, {Name: "b", MinDays: 12, MaxDays: Unbounded}},
		"overlap":     {{Name: "a", MinDays: 0, MaxDays: 10}, {Name: "b", MinDays: 10, MaxDays: Unbounded}},
		"bounded":     {{Name: "a", MinDays: 0, MaxDays: 10}},
		"late start":  {{Name: "a", MinDays: 1, MaxDays: Unbounded}},
		"open middle": {{Name: "a", MinDays: 0, MaxDays: Unbounded}, {Name: "b", MinDays: 1, MaxDays: Unbounded}},
		"duplicate":   {{Name: "a", MinDays: 0, MaxDays: 5}, {Name: "a", MinDays: 6, MaxDays: Unbounded}},
	}
	for name, set := range cases {
		if err := set.Validate(); !errors.Is(err, ErrInvalidBuckets) {
			t.Fatalf("%s: expected ErrInvalidBuckets, got %v", name, err)
		}
	}
}

func TestColumnsFollowBucketOrder(t *testing.T) {
	cols := Columns(DefaultBuckets())
	want := []string{"Serial No.", "Vendor Name", "Account Code", "Account Name",
		"Within 1 month", "1-3 months", "3-6 months", "6-12 months", "1-2 years", "2-3 years", "Over 3 years",
		"Total Amount"}
	if len(cols) != len(want) {
		t.Fatalf("expected %d columns got %d", len(want), len(cols))
	}
	for i := range want {
		if cols[i] != want[i] {
			t.Fatalf("column %d: expected %q got %q", i, want[i], cols[i])
		}
	}
}
