package validation

import (
	"cmp"
	"strings"
	"time"

	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/dsl"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/storage"
)

// Compare applies a comparison operator. Numbers compare numerically, date
// and datetime strings chronologically, other strings lexically. Ordering
// operators are false when either side is nil or the sides are not
// comparable.
func Compare(left any, op string, right any) bool {
	switch op {
	case "present":
		return !blank(left)
	case "absent":
		return blank(left)
	case "eq":
		return equal(left, right)
	case "ne":
		return !equal(left, right)
	}

	c, ok := order(left, right)
	if !ok {
		return false
	}
	switch op {
	case "gt":
		return c > 0
	case "gte":
		return c >= 0
	case "lt":
		return c < 0
	case "lte":
		return c <= 0
	}
	return false
}

func blank(v any) bool {
	switch val := dsl.Normalize(v).(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	case []any:
		return len(val) == 0
	}
	return false
}

func equal(a, b any) bool {
	if c, ok := order(a, b); ok {
		return c == 0
	}
	return storage.ValuesEqual(a, b)
}

func order(a, b any) (int, bool) {
	if a == nil || b == nil {
		return 0, false
	}
	if fa, ok := dsl.ToFloat(a); ok {
		fb, ok := dsl.ToFloat(b)
		if !ok {
			return 0, false
		}
		return cmp.Compare(fa, fb), true
	}
	sa, okA := dsl.Normalize(a).(string)
	sb, okB := dsl.Normalize(b).(string)
	if !okA || !okB {
		return 0, false
	}
	ta, errA := ParseTime(sa)
	tb, errB := ParseTime(sb)
	if errA == nil && errB == nil {
		return ta.Compare(tb), true
	}
	return strings.Compare(sa, sb), true
}

// ParseTime parses an RFC3339 datetime or a YYYY-MM-DD date (as midnight UTC).
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(dsl.DateTimeLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(dsl.DateLayout, s)
}
