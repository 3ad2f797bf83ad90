package domain

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DayHours is one weekday's opening window. Open and Close are minutes after midnight;
// Close <= Open means the window runs past midnight.
type DayHours struct {
	Closed bool `json:"closed,omitempty"`
	Open24 bool `json:"open24,omitempty"`
	Open   int  `json:"open,omitempty"`
	Close  int  `json:"close,omitempty"`
}

// Schedule is a structured week, indexed by time.Weekday.
// Known is false when the source string could not be parsed.
type Schedule struct {
	Known bool        `json:"known"`
	Days  [7]DayHours `json:"days"`
}

// Fallback window applied when a listing's hours are unknown.
const (
	fallbackOpen  = 6 * 60
	fallbackClose = 22 * 60
)

// IsOpen reports whether the schedule is open at t (in t's location).
func (s Schedule) IsOpen(t time.Time) bool {
	m := t.Hour()*60 + t.Minute()
	if !s.Known {
		return m >= fallbackOpen && m < fallbackClose
	}

	wd := int(t.Weekday())
	d := s.Days[wd]
	switch {
	case d.Open24:
		return true
	case d.Closed:
	case d.Close > d.Open:
		if m >= d.Open && m < d.Close {
			return true
		}
	default:
		if m >= d.Open {
			return true
		}
	}

	// spill-over from yesterday's overnight window
	y := s.Days[(wd+6)%7]
	if !y.Closed && !y.Open24 && y.Close <= y.Open && m < y.Close {
		return true
	}
	return false
}

var (
	timeRangeRe = regexp.MustCompile(`(\d{1,2})(?::(\d{2}))?\s*(am|pm|a\.m\.|p\.m\.)?\s*(?:-|–|to)\s*(\d{1,2})(?::(\d{2}))?\s*(am|pm|a\.m\.|p\.m\.)?`)
	segmentSep  = regexp.MustCompile(`[;,\n]+`)
	daySep      = regexp.MustCompile(`\s*(?:&|/|\band\b)\s*`)
)

var dayPrefixes = []string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}

// ParseSchedule turns free-form hour strings ("24 Hours", "Mon-Fri 6am-10pm, Sat-Sun
// 7am-9pm", "6:00 AM - 11:00 PM") into a Schedule. Anything it cannot read yields an
// unknown schedule rather than an error.
func ParseSchedule(raw string) Schedule {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return Schedule{}
	}
	s = strings.NewReplacer("midnight", "12am", "noon", "12pm").Replace(s)

	if isAllDay(s) {
		var out Schedule
		out.Known = true
		for i := range out.Days {
			out.Days[i] = DayHours{Open24: true}
		}
		return out
	}

	var out Schedule
	for i := range out.Days {
		out.Days[i] = DayHours{Closed: true}
	}

	matched := false
	for _, seg := range segmentSep.Split(s, -1) {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		days, hours, ok := parseSegment(seg)
		if !ok {
			return Schedule{}
		}
		for _, d := range days {
			out.Days[d] = hours
		}
		matched = true
	}
	if !matched {
		return Schedule{}
	}
	out.Known = true
	return out
}

func isAllDay(s string) bool {
	switch strings.TrimPrefix(s, "open ") {
	case "24 hours", "24 hrs", "24/7", "24hrs", "24h", "always open":
		return true
	}
	return false
}

func parseSegment(seg string) ([]int, DayHours, bool) {
	loc := timeRangeRe.FindStringSubmatchIndex(seg)
	var dayPart string
	var hours DayHours

	switch {
	case loc != nil:
		dayPart = seg[:loc[0]]
		m := timeRangeRe.FindStringSubmatch(seg)
		open, ok1 := toMinutes(m[1], m[2], m[3], m[6], true)
		closing, ok2 := toMinutes(m[4], m[5], m[6], m[3], false)
		if !ok1 || !ok2 {
			return nil, DayHours{}, false
		}
		hours = DayHours{Open: open, Close: closing}
	case strings.HasSuffix(seg, "closed"):
		dayPart = strings.TrimSuffix(seg, "closed")
		hours = DayHours{Closed: true}
	case strings.Contains(seg, "24"):
		dayPart = seg[:strings.Index(seg, "24")]
		hours = DayHours{Open24: true}
	default:
		return nil, DayHours{}, false
	}

	days, ok := parseDays(dayPart)
	return days, hours, ok
}

// toMinutes converts an hour/minute/meridiem triple. When the meridiem is missing but the
// other end of the range has one, it is inferred ("7-11pm" reads as 7am-11pm).
func toMinutes(h, m, mer, otherMer string, isOpen bool) (int, bool) {
	hour, err := strconv.Atoi(h)
	if err != nil {
		return 0, false
	}
	minute := 0
	if m != "" {
		if minute, err = strconv.Atoi(m); err != nil || minute > 59 {
			return 0, false
		}
	}
	mer = strings.ReplaceAll(mer, ".", "")
	otherMer = strings.ReplaceAll(otherMer, ".", "")

	if mer == "" && otherMer != "" && hour <= 12 {
		switch {
		case isOpen && otherMer == "pm" && hour != 12:
			mer = "am"
		case isOpen && otherMer == "am":
			mer = "pm"
		default:
			mer = otherMer
		}
	}

	switch mer {
	case "am":
		if hour < 1 || hour > 12 {
			return 0, false
		}
		if hour == 12 {
			hour = 0
		}
	case "pm":
		if hour < 1 || hour > 12 {
			return 0, false
		}
		if hour != 12 {
			hour += 12
		}
	default:
		if hour > 24 {
			return 0, false
		}
		if hour == 24 {
			hour = 0
		}
	}
	return hour*60 + minute, true
}

func parseDays(part string) ([]int, bool) {
	part = strings.Trim(strings.TrimSpace(part), ":")
	part = strings.TrimSpace(part)
	switch part {
	case "", "daily", "everyday", "every day", "all days", "open":
		return []int{0, 1, 2, 3, 4, 5, 6}, true
	case "weekdays":
		return []int{1, 2, 3, 4, 5}, true
	case "weekends":
		return []int{6, 0}, true
	}

	var out []int
	for _, piece := range daySep.Split(part, -1) {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		if from, to, found := strings.Cut(piece, "-"); found {
			a, okA := dayIndex(from)
			b, okB := dayIndex(to)
			if !okA || !okB {
				return nil, false
			}
			for d := a; ; d = (d + 1) % 7 {
				out = append(out, d)
				if d == b {
					break
				}
			}
			continue
		}
		d, ok := dayIndex(piece)
		if !ok {
			return nil, false
		}
		out = append(out, d)
	}
	return out, len(out) > 0
}

func dayIndex(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return 0, false
	}
	for i, p := range dayPrefixes {
		if strings.HasPrefix(s, p) || (len(s) < 3 && strings.HasPrefix(p, s)) {
			return i, true
		}
	}
	return 0, false
}
