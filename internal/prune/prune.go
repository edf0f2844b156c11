// Package prune selects candidate row groups from per-group ts_init statistics.
//
// Selection is an inclusion test at row-group granularity: the result is a superset of the
// groups holding matching rows, and rows are never filtered afterwards. Groups whose
// statistics are absent are always selected.
package prune

import (
	"fmt"
	"strings"
)

// Op is the kind of group filter.
type Op uint8

const (
	None Op = iota
	// Before selects groups whose minimum ts_init is below the limit.
	Before
	// After selects groups whose maximum ts_init is above the limit.
	After
)

func (o Op) String() string {
	switch o {
	case None:
		return "none"
	case Before:
		return "before"
	case After:
		return "after"
	default:
		return fmt.Sprintf("op(%d)", uint8(o))
	}
}

// Filter is a row-group predicate on ts_init.
type Filter struct {
	Op    Op
	Limit uint64
}

// NoFilter selects every group.
func NoFilter() Filter { return Filter{Op: None} }

// BeforeTs selects groups that may hold records at or before limit.
func BeforeTs(limit uint64) Filter { return Filter{Op: Before, Limit: limit} }

// AfterTs selects groups that may hold records after limit.
func AfterTs(limit uint64) Filter { return Filter{Op: After, Limit: limit} }

func (f Filter) String() string {
	if f.Op == None {
		return "none"
	}
	return fmt.Sprintf("%s(%d)", f.Op, f.Limit)
}

// RowGroupStats holds the ts_init bounds of one row group.
type RowGroupStats struct {
	Min       uint64
	Max       uint64
	HasBounds bool
}

// Bounds builds stats for a group with known min and max.
func Bounds(min, max uint64) RowGroupStats {
	return RowGroupStats{Min: min, Max: max, HasBounds: true}
}

// Includes reports whether a group with stats s passes f.
func (f Filter) Includes(s RowGroupStats) bool {
	if !s.HasBounds {
		return true
	}
	switch f.Op {
	case Before:
		return s.Min < f.Limit
	case After:
		return s.Max > f.Limit
	default:
		return true
	}
}

// Select returns the indexes of the groups passing f, in file order.
func Select(groups []RowGroupStats, f Filter) []int {
	selected := make([]int, 0, len(groups))
	for i, g := range groups {
		if f.Includes(g) {
			selected = append(selected, i)
		}
	}
	return selected
}

// SelectAll returns 0..n-1. Used when the file carries no ts_init statistics.
func SelectAll(n int) []int {
	selected := make([]int, n)
	for i := range selected {
		selected[i] = i
	}
	return selected
}

// FromInt64 decodes the compact boundary encoding: negative -> Before(|v|), 0 -> None, positive -> After(v).
func FromInt64(v int64) Filter {
	switch {
	case v < 0:
		// -v overflows for MinInt64; the unsigned negation does not.
		return BeforeTs(uint64(^v) + 1)
	case v > 0:
		return AfterTs(uint64(v))
	default:
		return NoFilter()
	}
}

// Int64 is the inverse of FromInt64. A zero limit or one above MaxInt64 cannot be encoded.
func (f Filter) Int64() (int64, error) {
	if f.Op != None && (f.Limit == 0 || f.Limit > 1<<63-1) {
		return 0, fmt.Errorf("limit %d does not fit the signed encoding", f.Limit)
	}
	switch f.Op {
	case Before:
		return -int64(f.Limit), nil
	case After:
		return int64(f.Limit), nil
	default:
		return 0, nil
	}
}

// ParseFilter parses config text: "", "none", "before", "after" (case-insensitive).
func ParseFilter(op string, limit uint64) (Filter, error) {
	switch strings.ToLower(strings.TrimSpace(op)) {
	case "", "none", "all":
		return NoFilter(), nil
	case "before", "lt":
		return BeforeTs(limit), nil
	case "after", "gt":
		return AfterTs(limit), nil
	default:
		return Filter{}, fmt.Errorf("unsupported filter %q (use: none, before, after)", op)
	}
}
