/*
month.go - Event dates and calendar months

PURPOSE:
  Per-month pay counts distinct calendar months of a member's events.
  Event dates arrive as text in a few layouts; dates that parse in none of
  them count as undated and contribute no month.

SEE ALSO:
  - policy.go: Per-month policy uses EventMonth
*/
package finance

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// YEAR-MONTH - The unit of work for per-month members
// =============================================================================

// YearMonth is a calendar month. Two events in the same YearMonth count once
// for a per-month member.
type YearMonth struct {
	Year  int
	Month time.Month
}

func YearMonthOf(t time.Time) YearMonth { return YearMonth{Year: t.Year(), Month: t.Month()} }

func (ym YearMonth) String() string { return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month)) }

// Start returns the first day of the month in UTC.
func (ym YearMonth) Start() time.Time {
	return time.Date(ym.Year, ym.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End returns the last day of the month in UTC.
func (ym YearMonth) End() time.Time {
	return ym.Start().AddDate(0, 1, -1)
}

// =============================================================================
// EVENT DATES
// =============================================================================

// eventDateLayouts are tried in order. Event documents have carried plain
// dates, ISO timestamps with and without zone, and JS Date.toISOString output.
var eventDateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseEventDate parses a stored event date. The calendar date is taken as
// written, in the timestamp's own offset.
func ParseEventDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range eventDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// EventMonth returns the YearMonth of a stored event date, or false when the
// date is missing or unparseable.
func EventMonth(s string) (YearMonth, bool) {
	t, ok := ParseEventDate(s)
	if !ok {
		return YearMonth{}, false
	}
	return YearMonthOf(t), true
}
