package aging

import (
	"fmt"
	"math"
)

// Unbounded marks a bucket without an upper day limit.
const Unbounded = -1

// Bucket is a named, inclusive day-count range.
type Bucket struct {
	Name    string `json:"name"`
	MinDays int    `json:"min_days"`
	MaxDays int    `json:"max_days"`
}

// Contains reports whether age falls inside the bucket.
func (b Bucket) Contains(age int) bool {
	if age < b.MinDays {
		return false
	}
	return b.MaxDays == Unbounded || age <= b.MaxDays
}

// Label renders the range for display, e.g. "31-90" or "1096+".
func (b Bucket) Label() string {
	if b.MaxDays == Unbounded {
		return fmt.Sprintf("%d+", b.MinDays)
	}
	return fmt.Sprintf("%d-%d", b.MinDays, b.MaxDays)
}

// BucketSet is an ordered sequence of buckets.
type BucketSet []Bucket

// DefaultBuckets returns the canonical aging schedule.
func DefaultBuckets() BucketSet {
	return BucketSet{
		{Name: "Within 1 month", MinDays: 0, MaxDays: 30},
		{Name: "1-3 months", MinDays: 31, MaxDays: 90},
		{Name: "3-6 months", MinDays: 91, MaxDays: 180},
		{Name: "6-12 months", MinDays: 181, MaxDays: 365},
		{Name: "1-2 years", MinDays: 366, MaxDays: 730},
		{Name: "2-3 years", MinDays: 731, MaxDays: 1095},
		{Name: "Over 3 years", MinDays: 1096, MaxDays: Unbounded},
	}
}

// Validate checks that the buckets partition [0, inf) in order without gaps or overlaps.
func (s BucketSet) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("%w: no buckets", ErrInvalidBuckets)
	}
	next := 0
	seen := make(map[string]struct{}, len(s))
	for i, b := range s {
		if b.Name == "" {
			return fmt.Errorf("%w: bucket %d has no name", ErrInvalidBuckets, i)
		}
		if _, dup := seen[b.Name]; dup {
			return fmt.Errorf("%w: duplicate bucket %q", ErrInvalidBuckets, b.Name)
		}
		seen[b.Name] = struct{}{}
		if b.MinDays != next {
			return fmt.Errorf("%w: bucket %q starts at %d, expected %d", ErrInvalidBuckets, b.Name, b.MinDays, next)
		}
		if b.MaxDays == Unbounded {
			if i != len(s)-1 {
				return fmt.Errorf("%w: unbounded bucket %q must be last", ErrInvalidBuckets, b.Name)
			}
			return nil
		}
		if b.MaxDays < b.MinDays {
			return fmt.Errorf("%w: bucket %q ends before it starts", ErrInvalidBuckets, b.Name)
		}
		if b.MaxDays == math.MaxInt {
			return fmt.Errorf("%w: use Unbounded for open-ended bucket %q", ErrInvalidBuckets, b.Name)
		}
		next = b.MaxDays + 1
	}
	return fmt.Errorf("%w: last bucket must be unbounded", ErrInvalidBuckets)
}

// Classify returns the index of the bucket holding age, or -1 when none does.
func (s BucketSet) Classify(age int) int {
	for i, b := range s {
		if b.Contains(age) {
			return i
		}
	}
	return -1
}

// Names lists bucket names in order.
func (s BucketSet) Names() []string {
	names := make([]string, len(s))
	for i, b := range s {
		names[i] = b.Name
	}
	return names
}
