package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var clockRegexp = regexp.MustCompile(`^(\d{1,2}):(\d{2})(?::(\d{2}))?$`)

// Layouts without a zone are interpreted in the normalizer's location.
var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
}

// ParseTimestamp reads a full timestamp. Clock-only strings are not timestamps.
func ParseTimestamp(value interface{}, location *time.Location) (*time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		if v.IsZero() {
			return nil, false
		}
		return &v, true
	case *time.Time:
		if v == nil || v.IsZero() {
			return nil, false
		}
		t := *v
		return &t, true
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil, false
		}
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return &t, true
		}
		for _, layout := range localLayouts {
			if t, err := time.ParseInLocation(layout, s, location); err == nil {
				return &t, true
			}
		}
		if epoch, err := strconv.ParseFloat(s, 64); err == nil {
			return fromEpoch(epoch, location)
		}
		return nil, false
	default:
		if epoch, ok := ExtractNumber(value); ok {
			return fromEpoch(epoch, location)
		}
		return nil, false
	}
}

// Epochs above 1e12 are milliseconds.
func fromEpoch(epoch float64, location *time.Location) (*time.Time, bool) {
	if epoch <= 0 {
		return nil, false
	}
	var t time.Time
	if epoch >= 1e12 {
		t = time.UnixMilli(int64(epoch)).In(location)
	} else {
		t = time.Unix(int64(epoch), 0).In(location)
	}
	return &t, true
}

// ParseClock combines an "HH:MM" or "HH:MM:SS" string with the date of now.
func ParseClock(value string, now time.Time) (*time.Time, bool) {
	matches := clockRegexp.FindStringSubmatch(strings.TrimSpace(value))
	if matches == nil {
		return nil, false
	}
	hour, _ := strconv.Atoi(matches[1])
	minute, _ := strconv.Atoi(matches[2])
	second := 0
	if matches[3] != "" {
		second, _ = strconv.Atoi(matches[3])
	}
	if hour > 23 || minute > 59 || second > 59 {
		return nil, false
	}

	year, month, day := now.Date()
	t := time.Date(year, month, day, hour, minute, second, 0, now.Location())
	return &t, true
}

// TimeAgo renders the time elapsed between t and now.
func TimeAgo(t time.Time, now time.Time) string {
	elapsed := now.Sub(t)
	switch {
	case elapsed < time.Minute:
		return "just now"
	case elapsed < time.Hour:
		return fmt.Sprintf("%d min ago", int(elapsed.Minutes()))
	case elapsed < 24*time.Hour:
		hours := int(elapsed.Hours())
		minutes := int(elapsed.Minutes()) - hours*60
		if minutes == 0 {
			return fmt.Sprintf("%dh ago", hours)
		}
		return fmt.Sprintf("%dh %dm ago", hours, minutes)
	default:
		days := int(elapsed.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	}
}

// ValueText renders a signed volume. Output is negative, intake positive.
func ValueText(output bool, valueMl float64) string {
	sign := "+"
	if output {
		sign = "-"
	}
	return message.NewPrinter(language.English).Sprintf("%s %v ml", sign, number.Decimal(valueMl, number.MaxFractionDigits(1)))
}
