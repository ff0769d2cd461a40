package watch

import (
	"regexp"
	"time"
)

// Log lines carry a leading "MM/DD/YYYY HH:MM:SS: " token in the server's
// local time zone.
var timestampRegex = regexp.MustCompile(`^(\d{2}/\d{2}/\d{4} \d{2}:\d{2}:\d{2}): `)

const timestampLayout = "01/02/2006 15:04:05"

// ExtractTimestamp parses the leading timestamp of a log line. The second
// return is false when the line carries no timestamp token.
func ExtractTimestamp(line string) (time.Time, bool) {
	match := timestampRegex.FindStringSubmatch(line)
	if match == nil {
		return time.Time{}, false
	}
	ts, err := time.ParseInLocation(timestampLayout, match[1], time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}
