package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind names a family of durable human IDs. Each kind has its own
// monotonically increasing counter.
type Kind string

const (
	KindTenant  Kind = "tuition"
	KindBatch   Kind = "batch"
	KindStudent Kind = "student"
)

// Prefix returns the ID prefix for the kind.
func (k Kind) Prefix() string {
	switch k {
	case KindTenant:
		return "TUI"
	case KindBatch:
		return "BATCH"
	case KindStudent:
		return "STU"
	}
	return strings.ToUpper(string(k))
}

// Kinds lists every counter-backed kind.
var Kinds = []Kind{KindTenant, KindBatch, KindStudent}

// FormatCustomID renders sequence n of kind k, e.g. STU-42.
func FormatCustomID(k Kind, n int64) string {
	return fmt.Sprintf("%s-%d", k.Prefix(), n)
}

// ParseCustomID returns the numeric suffix of a custom ID of kind k.
// ok is false when id does not follow the <PREFIX>-<n> form.
func ParseCustomID(k Kind, id string) (n int64, ok bool) {
	prefix := k.Prefix() + "-"
	if !strings.HasPrefix(strings.ToUpper(id), prefix) {
		return 0, false
	}
	n, err := strconv.ParseInt(id[len(prefix):], 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// Day truncates t to its UTC calendar day. Attendance uniqueness is
// evaluated on this value.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayKey formats t's calendar day as YYYY-MM-DD.
func DayKey(t time.Time) string {
	return Day(t).Format(time.DateOnly)
}

// ParseSchedule is the inverse of Schedule.String.
func ParseSchedule(s string) Schedule {
	s = strings.TrimSpace(s)
	if s == "" {
		return Schedule{}
	}
	var sched Schedule
	days := s
	if i := strings.LastIndex(s, "@"); i >= 0 {
		sched.Time = strings.TrimSpace(s[i+1:])
		days = s[:i]
	}
	for _, d := range strings.Split(days, ",") {
		if d = strings.TrimSpace(d); d != "" {
			sched.Days = append(sched.Days, d)
		}
	}
	return sched
}

func normalizeEnum(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.ReplaceAll(s, " ", "_")
}

func joinNonEmpty(parts []string, sep string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
