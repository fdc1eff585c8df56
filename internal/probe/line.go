package probe

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hugo-lorenzo-mato/timeoffset/internal/core"
)

const (
	linePrefix   = "[SCRIPT] TIME : "
	rankMarker   = " RANK : "
	hostMarker   = " HOSTNAME : "
	lineTemplate = linePrefix + "%f" + rankMarker + "%d" + hostMarker + "%s\n"
)

// timeField matches what %f produces: six fractional digits, no exponent.
var timeField = regexp.MustCompile(`^-?[0-9]+\.[0-9]{6}$`)

// Sample is one member's diagnostic reading.
type Sample struct {
	Time     time.Time
	Rank     int
	Size     int
	Hostname string
}

// Seconds converts t to seconds since the Unix epoch, fraction included.
func Seconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}

// FormatLine renders s as a newline-terminated diagnostic line.
func FormatLine(s Sample) string {
	return fmt.Sprintf(lineTemplate, Seconds(s.Time), s.Rank, s.Hostname)
}

// ParsedLine is a diagnostic line read back from output.
type ParsedLine struct {
	Seconds  float64
	Rank     int
	Hostname string
}

// Time returns the timestamp as a time.Time with microsecond precision.
func (p ParsedLine) Time() time.Time {
	return time.UnixMicro(int64(p.Seconds*1e6 + 0.5))
}

// ParseLine reads a line produced by FormatLine. The trailing newline is
// optional. TIME must have exactly six fractional digits and RANK must be
// unpadded and unsigned. Hostnames may contain the marker text; only the
// first RANK marker after the timestamp is significant.
func ParseLine(line string) (ParsedLine, error) {
	line = strings.TrimSuffix(line, "\n")
	malformed := func(why string) error {
		return core.ErrValidation(core.CodeMalformedLine, why).WithDetail("line", line)
	}

	rest, ok := strings.CutPrefix(line, linePrefix)
	if !ok {
		return ParsedLine{}, malformed("missing [SCRIPT] TIME prefix")
	}
	timeStr, rest, ok := strings.Cut(rest, rankMarker)
	if !ok {
		return ParsedLine{}, malformed("missing RANK field")
	}
	rankStr, host, ok := strings.Cut(rest, hostMarker)
	if !ok {
		return ParsedLine{}, malformed("missing HOSTNAME field")
	}

	if !timeField.MatchString(timeStr) {
		return ParsedLine{}, malformed("TIME is not a fixed-point number")
	}
	secs, err := strconv.ParseFloat(timeStr, 64)
	if err != nil {
		return ParsedLine{}, malformed("TIME is not a number")
	}
	rank, err := strconv.Atoi(rankStr)
	if err != nil || rank < 0 || strconv.Itoa(rank) != rankStr {
		return ParsedLine{}, malformed("RANK is not a plain non-negative integer")
	}

	return ParsedLine{Seconds: secs, Rank: rank, Hostname: host}, nil
}
