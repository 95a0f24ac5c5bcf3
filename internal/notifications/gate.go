package notifications

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// IsDigestWindow reports whether now falls inside one of the daily digest
// slots. A slot matches for digestWindowMinutes minutes starting at its
// configured minute, because the digest scan polls coarser than once a
// minute. now is interpreted in its own location.
func IsDigestWindow(now time.Time, times []DigestTime) bool {
	h, m := now.Hour(), now.Minute()
	for _, t := range times {
		if h == t.Hour && m >= t.Minute && m < t.Minute+digestWindowMinutes {
			return true
		}
	}
	return false
}

// ParseDigestTimes parses a comma-separated list of HH:MM values.
func ParseDigestTimes(s string) ([]DigestTime, error) {
	var out []DigestTime
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		hh, mm, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("digest time %q: want HH:MM", part)
		}
		h, err := strconv.Atoi(hh)
		if err != nil || h < 0 || h > 23 {
			return nil, fmt.Errorf("digest time %q: invalid hour", part)
		}
		m, err := strconv.Atoi(mm)
		if err != nil || m < 0 || m > 59 {
			return nil, fmt.Errorf("digest time %q: invalid minute", part)
		}
		out = append(out, DigestTime{Hour: h, Minute: m})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no digest times in %q", s)
	}
	return out, nil
}

// String formats the slot as HH:MM.
func (t DigestTime) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// digestKey identifies one digest per user per local date and hour.
func digestKey(userID int64, local time.Time) string {
	return fmt.Sprintf("digest-%d-%s-%d", userID, local.Format("2006-01-02"), local.Hour())
}
