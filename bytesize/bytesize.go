// Package bytesize parses the human readable sizes clients report for
// memory and disk, such as "2.2 GB".
package bytesize

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/c2h5oh/datasize"
)

// units maps a case-insensitive suffix to its multiplier. Sizes are binary.
var units = map[string]datasize.ByteSize{

	"B": datasize.B,

	"KB": datasize.KB,

	"MB": datasize.MB,

	"GB": datasize.GB,

	"TB": datasize.TB,

	"PB": datasize.PB,
}

// Parse converts s into a byte count. The boolean is false when s is empty,
// which callers store as "no value" rather than treating as an error.
func Parse(s string) (int64, bool, error) {

	s = strings.TrimSpace(s)

	if s == "" {
		return 0, false, nil
	}

	// split the numeric prefix from the unit suffix
	i := 0

	for i < len(s) && (s[i] >= '0' && s[i] <= '9' || s[i] == '.' || s[i] == '-' || s[i] == '+') {
		i++
	}

	number, unit := s[:i], strings.ToUpper(strings.TrimSpace(s[i:]))

	value, err := strconv.ParseFloat(number, 64)

	if err != nil {
		return 0, false, fmt.Errorf("invalid byte size %q: %w", s, err)
	}

	if unit == "" {
		unit = "B"
	}

	multiplier, ok := units[unit]

	if !ok {
		return 0, false, fmt.Errorf("invalid byte size %q: unknown unit %q", s, unit)
	}

	if value < 0 || math.IsNaN(value) {
		return 0, false, fmt.Errorf("invalid byte size %q: must not be negative", s)
	}

	bytes := value * float64(multiplier)

	// float64(math.MaxInt64) rounds up to 2^63, which no longer fits
	if bytes >= math.MaxInt64 {
		return 0, false, fmt.Errorf("invalid byte size %q: too large", s)
	}

	return int64(bytes), true, nil
}
