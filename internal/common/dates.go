package common

import (
	"fmt"
	"strings"
	"time"
)

// Date formats used across the service. The Weather Underground history API
// wants compact calendar dates; Postgres stores ISO dates.
const (
	CompactDateLayout = "20060102"
	ISODateLayout     = "2006-01-02"
)

// TodayCompact returns the current UTC calendar date as YYYYMMDD.
func TodayCompact(now time.Time) string {
	return now.UTC().Format(CompactDateLayout)
}

// TodayISO returns the current UTC calendar date as YYYY-MM-DD.
func TodayISO(now time.Time) string {
	return now.UTC().Format(ISODateLayout)
}

// CompactToISO converts YYYYMMDD into YYYY-MM-DD. The input must be exactly
// 8 characters; anything else is rejected so a malformed date never reaches
// the database as a truncated value.
func CompactToISO(d string) (string, error) {
	if len(d) != 8 {
		return "", fmt.Errorf("invalid date %q: expected YYYYMMDD", d)
	}
	return d[0:4] + "-" + d[4:6] + "-" + d[6:8], nil
}

// NormalizeISO accepts a date in either YYYYMMDD or YYYY-MM-DD form and
// returns the ISO form used for storage lookups.
func NormalizeISO(d string) (string, error) {
	if strings.Contains(d, "-") {
		return d, nil
	}
	return CompactToISO(d)
}
