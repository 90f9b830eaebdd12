package teal

import (
	"fmt"
	"time"
)

// Timestamp is epoch milliseconds plus a display offset in minutes. The
// offset is carried so a value written as 2024-01-01T09:00:00+02:00
// round-trips with its zone intact rather than collapsing to UTC.
type Timestamp struct {
	Millis int64
	Offset int16
}

// Representable ISO-8601 range, years 0000 through 9999.
const (
	minTimestampMillis = -62_167_219_200_000
	maxTimestampMillis = 253_402_300_799_999
)

func (t Timestamp) Time() time.Time {
	loc := time.UTC
	if t.Offset != 0 {
		loc = time.FixedZone("", int(t.Offset)*60)
	}
	return time.UnixMilli(t.Millis).In(loc)
}

// String formats the timestamp as ISO 8601 with millisecond precision.
// The offset is applied for display; a zero offset emits a Z suffix.
// Out-of-range instants are clamped to the year 0000-9999 boundary.
func (t Timestamp) String() string {
	millis := clampMillis(t.Millis)
	local := clampMillis(millis + int64(t.Offset)*60_000)

	secs := floorDiv(local, 1000)
	ms := local - secs*1000
	days := floorDiv(secs, 86400)
	rem := secs - days*86400
	hour := rem / 3600
	min := rem % 3600 / 60
	sec := rem % 60
	year, month, day := daysToDate(days)

	s := fmt.Sprintf("%04d-%02d-%02dT%02d:%02d:%02d", year, month, day, hour, min, sec)
	if ms > 0 {
		s += fmt.Sprintf(".%03d", ms)
	}
	if t.Offset == 0 {
		return s + "Z"
	}
	off := t.Offset
	sign := "+"
	if off < 0 {
		sign = "-"
		off = -off
	}
	return s + fmt.Sprintf("%s%02d:%02d", sign, off/60, off%60)
}

func clampMillis(ms int64) int64 {
	if ms < minTimestampMillis {
		return minTimestampMillis
	}
	if ms > maxTimestampMillis {
		return maxTimestampMillis
	}
	return ms
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// daysToDate converts days since the Unix epoch to a civil date using
// Howard Hinnant's algorithm.
func daysToDate(days int64) (int64, int, int) {
	z := days + 719468
	era := z
	if z < 0 {
		era = z - 146096
	}
	era /= 146097
	doe := z - era*146097
	yoe := (doe - doe/1460 + doe/36524 - doe/146096) / 365
	y := yoe + era*400
	doy := doe - (365*yoe + yoe/4 - yoe/100)
	mp := (5*doy + 2) / 153
	d := doy - (153*mp+2)/5 + 1
	m := mp + 3
	if mp >= 10 {
		m = mp - 9
	}
	if m <= 2 {
		y++
	}
	return y, int(m), int(d)
}

// dateToDays is the inverse of daysToDate.
func dateToDays(year int64, month, day int) int64 {
	y := year
	if month <= 2 {
		y--
	}
	era := y
	if y < 0 {
		era = y - 399
	}
	era /= 400
	yoe := y - era*400
	var mp int64
	if month > 2 {
		mp = int64(month) - 3
	} else {
		mp = int64(month) + 9
	}
	doy := (153*mp+2)/5 + int64(day) - 1
	doe := yoe*365 + yoe/4 - yoe/100 + doy
	return era*146097 + doe - 719468
}

// ParseTimestamp parses a strict ISO-8601 literal: YYYY-MM-DD, optionally
// followed by THH:MM or THH:MM:SS (omitted seconds are zero), a
// fractional part after the seconds (truncated to milliseconds), and a
// zone of Z, +HH:MM, +HHMM, or +HH. The returned Timestamp keeps the
// parsed offset.
func ParseTimestamp(s string) (Timestamp, error) {
	fail := func() (Timestamp, error) {
		return Timestamp{}, fmt.Errorf("invalid timestamp literal %q", s)
	}
	digits := func(p string, n int) (int64, bool) {
		if len(p) < n {
			return 0, false
		}
		var v int64
		for i := 0; i < n; i++ {
			c := p[i]
			if c < '0' || c > '9' {
				return 0, false
			}
			v = v*10 + int64(c-'0')
		}
		return v, true
	}

	if len(s) < 10 || s[4] != '-' || s[7] != '-' {
		return fail()
	}
	year, ok1 := digits(s, 4)
	month, ok2 := digits(s[5:], 2)
	day, ok3 := digits(s[8:], 2)
	if !ok1 || !ok2 || !ok3 || month < 1 || month > 12 || day < 1 || day > 31 {
		return fail()
	}
	rest := s[10:]

	var hour, min, sec, ms int64
	if len(rest) > 0 && (rest[0] == 'T' || rest[0] == 't') {
		rest = rest[1:]
		if len(rest) < 5 || rest[2] != ':' {
			return fail()
		}
		var hok, mok bool
		hour, hok = digits(rest, 2)
		min, mok = digits(rest[3:], 2)
		if !hok || !mok || hour > 23 || min > 59 {
			return fail()
		}
		rest = rest[5:]
		if len(rest) > 0 && rest[0] == ':' {
			var sok bool
			sec, sok = digits(rest[1:], 2)
			if !sok || sec > 59 {
				return fail()
			}
			rest = rest[3:]
			if len(rest) > 0 && rest[0] == '.' {
				rest = rest[1:]
				n := 0
				for n < len(rest) && rest[n] >= '0' && rest[n] <= '9' {
					n++
				}
				if n == 0 {
					return fail()
				}
				for i := 0; i < 3; i++ {
					ms *= 10
					if i < n {
						ms += int64(rest[i] - '0')
					}
				}
				rest = rest[n:]
			}
		}
	}

	var offset int16
	switch {
	case rest == "" || rest == "Z" || rest == "z":
	case rest[0] == '+' || rest[0] == '-':
		neg := rest[0] == '-'
		rest = rest[1:]
		oh, ok := digits(rest, 2)
		if !ok || oh > 14 {
			return fail()
		}
		rest = rest[2:]
		var om int64
		switch {
		case rest == "":
		case rest[0] == ':':
			if om, ok = digits(rest[1:], 2); !ok || len(rest) != 3 {
				return fail()
			}
		default:
			if om, ok = digits(rest, 2); !ok || len(rest) != 2 {
				return fail()
			}
		}
		if om > 59 {
			return fail()
		}
		offset = int16(oh*60 + om)
		if neg {
			offset = -offset
		}
	default:
		return fail()
	}

	local := (dateToDays(year, int(month), int(day))*86400+hour*3600+min*60+sec)*1000 + ms
	return Timestamp{Millis: local - int64(offset)*60_000, Offset: offset}, nil
}
