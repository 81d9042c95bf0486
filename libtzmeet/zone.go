package libtzmeet

import (
	"fmt"
	"regexp"
	"strconv"
)

var gmtOffsetPattern = regexp.MustCompile(`GMT([+-]\d+)`)

// Offsets covered by the Etc/GMT fixed-offset zones.
const (
	minOffsetHours = -12
	maxOffsetHours = 14
)

// UserZone extracts the GMT±N suffix from a free-form local time string such
// as "August 12th, 2023 at 10:30:00 AM GMT-4" and returns the matching
// fixed-offset zone identifier.
func UserZone(userTimezone string) (string, error) {
	m := gmtOffsetPattern.FindStringSubmatch(userTimezone)
	if m == nil {
		return "", invalidInput("invalid user timezone format: %q", userTimezone)
	}
	return OffsetZone(m[1])
}

// OffsetZone converts a signed hour offset like "+2" or "-04" into an
// Etc/GMT identifier. Etc/GMT zones carry the inverted sign, so "+2" becomes
// "Etc/GMT-2" and "-4" becomes "Etc/GMT+4".
func OffsetZone(offset string) (string, error) {
	if len(offset) < 2 || (offset[0] != '+' && offset[0] != '-') {
		return "", invalidInput("offset %q must be signed", offset)
	}

	digits := offset[1:]
	if digits[0] < '0' || digits[0] > '9' {
		return "", invalidInput("offset %q is not a number", offset)
	}
	magnitude, err := strconv.Atoi(digits)
	if err != nil {
		return "", invalidInput("offset %q is not a number", offset)
	}

	hours := magnitude
	inverted := "-"
	if offset[0] == '-' {
		hours = -magnitude
		inverted = "+"
	}

	if hours < minOffsetHours || hours > maxOffsetHours {
		return "", invalidInput("offset %q outside GMT%d..GMT+%d", offset, minOffsetHours, maxOffsetHours)
	}

	return fmt.Sprintf("Etc/GMT%s%d", inverted, magnitude), nil
}
