package service

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// NormalizeSerial turns a Web NFC serial like "aa:11:bb:22" into "AA11BB22".
func NormalizeSerial(serial string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(serial)), ":", "")
}

func NormalizeType(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}

// CalendarDate resolves raw into the YYYY-MM-DD day it falls on in loc.
// raw is either an RFC 3339 timestamp (what the browser sends) or an
// already-resolved calendar date.
func CalendarDate(raw string, loc *time.Location) (string, error) {
	raw = strings.TrimSpace(raw)
	if d, err := time.Parse(dateLayout, raw); err == nil {
		return d.Format(dateLayout), nil
	}

	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return "", fmt.Errorf("%w: date %q", ErrInvalidInput, raw)
	}
	if loc == nil {
		loc = time.UTC
	}
	return ts.In(loc).Format(dateLayout), nil
}
