package entry

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// TimeLayout is the fixed-width timestamp written at the start of every entry.
// Go's formatter truncates fractional seconds, so milliseconds are never rounded.
const TimeLayout = "2006-01-02 15:04:05.000 UTC"

// Kind tags an entry. The set is open: any non-empty label is accepted.
type Kind string

const (
	KindIn   Kind = "IN"   // text received from a user
	KindOut  Kind = "OUT"  // text sent back to a user
	KindInfo Kind = "INFO" // anything else
)

// Known reports whether k is one of the conventional kinds.
func (k Kind) Known() bool {
	switch k {
	case KindIn, KindOut, KindInfo:
		return true
	}
	return false
}

// ErrInvalidKind is returned for kinds that would break the line format.
var ErrInvalidKind = errors.New("invalid kind")

// Validate rejects kinds containing ']' or a line break, which could not be
// parsed back from the header.
func (k Kind) Validate() error {
	if strings.ContainsAny(string(k), "]\r\n") {
		return fmt.Errorf("%w %q", ErrInvalidKind, string(k))
	}
	return nil
}

// Normalize returns KindInfo for an empty kind and k otherwise.
func (k Kind) Normalize() Kind {
	if k == "" {
		return KindInfo
	}
	return k
}

// Entry is a single record of the log file.
type Entry struct {
	Time time.Time `json:"time"`
	Kind Kind      `json:"kind"`
	Text string    `json:"text"`
}

// FormatTime renders t in UTC using TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// Line renders the entry as it is stored, including the trailing newline.
func (e Entry) Line() string {
	return fmt.Sprintf("[%s] [%s] %s\n", FormatTime(e.Time), e.Kind.Normalize(), e.Text)
}

var headerRE = regexp.MustCompile(`^\[(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\.\d{3} UTC)\] \[([^\]]*)\] ?`)

// Parse decodes a single physical line. Continuation lines of multi-line
// entries are not headers and fail to parse; use Scan for whole files.
func Parse(line string) (Entry, error) {
	line = strings.TrimSuffix(line, "\n")
	m := headerRE.FindStringSubmatchIndex(line)
	if m == nil {
		return Entry{}, fmt.Errorf("not an entry header: %q", truncate(line, 40))
	}
	ts, err := time.Parse(TimeLayout, line[m[2]:m[3]])
	if err != nil {
		return Entry{}, fmt.Errorf("parse timestamp: %w", err)
	}
	return Entry{
		Time: ts.UTC(),
		Kind: Kind(line[m[4]:m[5]]),
		Text: line[m[1]:],
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Scan parses raw log bytes into entries. Physical lines that are not
// headers are joined onto the previous entry's text, since entry text may
// contain newlines. orphan is the index of the first such line seen before
// any header, or -1.
func Scan(data []byte) (entries []Entry, orphan int) {
	orphan = -1
	for i, line := range splitLines(data) {
		if e, err := Parse(line); err == nil {
			entries = append(entries, e)
			continue
		}
		if len(entries) == 0 {
			if orphan < 0 {
				orphan = i
			}
			continue
		}
		last := &entries[len(entries)-1]
		last.Text += "\n" + line
	}
	return entries, orphan
}

// splitLines splits on '\n'. Unlike strings.Split it drops the empty
// element after a trailing newline but keeps empty lines in the middle.
func splitLines(data []byte) []string {
	s := strings.TrimSuffix(string(data), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
