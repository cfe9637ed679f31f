package csv

import (
	"fmt"
	"strings"

	"github.com/ajitpratap0/streametl/pkg/pool"
)

// LineEnding terminates every line written by FormatLine.
const LineEnding = "\r\n"

// FormatLine renders values as one delimited line, including the trailing
// CRLF. A value is quoted when it contains a quote, the delimiter, or a line
// break; embedded quotes are doubled. Nil values render as empty fields.
func FormatLine(values []interface{}, delim byte) string {
	if delim == 0 {
		delim = DefaultDelimiter
	}

	buf := pool.GetBuffer()
	defer pool.PutBuffer(buf)
	for i, v := range values {
		if i > 0 {
			buf.WriteByte(delim)
		}
		buf.WriteString(quoteField(stringify(v), delim))
	}
	buf.WriteString(LineEnding)
	return buf.String()
}

// FormatStrings is FormatLine for a row of strings.
func FormatStrings(values []string, delim byte) string {
	vs := make([]interface{}, len(values))
	for i, v := range values {
		vs[i] = v
	}
	return FormatLine(vs, delim)
}

func quoteField(s string, delim byte) string {
	if strings.IndexByte(s, quote) < 0 &&
		strings.IndexByte(s, delim) < 0 &&
		strings.IndexByte(s, '\n') < 0 &&
		strings.IndexByte(s, '\r') < 0 {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
