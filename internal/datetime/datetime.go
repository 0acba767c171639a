// Package datetime resolves date and time keywords to absolute timestamps.
package datetime

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrUnresolvable is returned when a keyword names no valid future moment.
var ErrUnresolvable = errors.New("datetime: unresolvable")

// Badge prefixes.
const (
	DuePrefix  = "📅 "
	TimePrefix = "⏰ "
)

var (
	numDateRe = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})$`)
	time24Re  = regexp.MustCompile(`^@(\d{1,2}):(\d{2})$`)
	time12Re  = regexp.MustCompile(`(?i)^@(\d{1,2})(?::(\d{2}))?(am|pm)$`)
)

// ResolveDate converts today, tomorrow or MM/DD to a moment relative to now.
//
// today and tomorrow keep now's time of day. MM/DD resolves to local midnight of
// the nearest occurrence that is not before today's date.
func ResolveDate(keyword string, now time.Time) (time.Time, error) {
	kw := strings.TrimSpace(keyword)
	switch strings.ToLower(kw) {
	case "today":
		return now, nil
	case "tomorrow":
		return now.AddDate(0, 0, 1), nil
	}

	m := numDateRe.FindStringSubmatch(kw)
	if m == nil {
		return time.Time{}, ErrUnresolvable
	}
	month, _ := strconv.Atoi(m[1])
	day, _ := strconv.Atoi(m[2])
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, ErrUnresolvable
	}

	loc := now.Location()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	for year := now.Year(); year <= now.Year()+4; year++ {
		t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
		// Reject normalized dates such as 02/30 -> March 2.
		if t.Month() != time.Month(month) || t.Day() != day {
			continue
		}
		if !t.Before(today) {
			return t, nil
		}
	}
	return time.Time{}, ErrUnresolvable
}

// ResolveTime converts an @HH:MM or @H[:MM]am|pm literal to a moment on now's
// date. Times at or before now fail; there is no next-day rollover.
func ResolveTime(literal string, now time.Time) (time.Time, error) {
	lit := strings.TrimSpace(literal)
	var hour, minute int

	if m := time24Re.FindStringSubmatch(lit); m != nil {
		hour, _ = strconv.Atoi(m[1])
		minute, _ = strconv.Atoi(m[2])
		if hour > 23 {
			return time.Time{}, ErrUnresolvable
		}
	} else if m := time12Re.FindStringSubmatch(lit); m != nil {
		hour, _ = strconv.Atoi(m[1])
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		if hour < 1 || hour > 12 {
			return time.Time{}, ErrUnresolvable
		}
		pm := strings.EqualFold(m[3], "pm")
		switch {
		case pm && hour != 12:
			hour += 12
		case !pm && hour == 12:
			hour = 0
		}
	} else {
		return time.Time{}, ErrUnresolvable
	}
	if minute > 59 {
		return time.Time{}, ErrUnresolvable
	}

	t := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !t.After(now) {
		return time.Time{}, ErrUnresolvable
	}
	return t, nil
}

// FormatDue renders the month and day shown on a due badge.
func FormatDue(t time.Time) string { return t.Format("Jan 2") }

// FormatTime renders the clock time shown on a time badge.
func FormatTime(t time.Time) string { return t.Format("3:04 PM") }

// FormatDay renders the full date shown on an inline date badge.
func FormatDay(t time.Time) string { return t.Format("Mon, Jan 2, 2006") }

// DueText is the display text of a due badge.
func DueText(t time.Time) string { return DuePrefix + FormatDue(t) }

// TimeText is the display text of a time badge.
func TimeText(t time.Time) string { return TimePrefix + FormatTime(t) }

// DayText is the display text of an inline date badge.
func DayText(t time.Time) string { return DuePrefix + FormatDay(t) }

// Millis converts t to epoch milliseconds.
func Millis(t time.Time) int64 { return t.UnixMilli() }
