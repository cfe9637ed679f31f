// Package csv implements an incremental, chunk-resumable tokenizer for
// delimited text.
//
// Unlike encoding/csv, the tokenizer never reads from an io.Reader. It is
// handed whatever text has arrived so far and reports how much of it formed
// complete records, so a caller feeding arbitrary network or file chunks keeps
// only the unconsumed tail between calls:
//
//	res := csv.Parse(buf, csv.Options{})
//	emit(res.Records)
//	buf = buf[res.Consumed:]
//
// Parser wraps that loop and owns the buffer.
package csv

import (
	"bytes"
	"strings"

	"github.com/ajitpratap0/streametl/pkg/errors"
)

const (
	// DefaultDelimiter separates fields when Options.Delimiter is zero.
	DefaultDelimiter = ','

	quote = '"'
)

var bom = []byte("\xef\xbb\xbf")

// Options configures a parse call.
type Options struct {
	// Delimiter is the single-byte field separator. Zero means ','.
	Delimiter byte
	// Columns is the expected field count per record. Zero infers it from
	// the first complete, non-blank record.
	Columns int
}

// Result is the outcome of one Parse call.
type Result struct {
	// Records holds the complete records in document order.
	Records [][]string
	// Consumed is one past the last byte of the last accepted record.
	// Everything after it must be presented again with more input.
	Consumed int
	// Incomplete reports that parsing stopped on a record that cannot be
	// accepted yet: an open quoted field, or a field count that does not
	// match the established column count.
	Incomplete bool
	// Columns is the column count in effect when parsing stopped. It equals
	// Options.Columns unless that was zero and a record established it.
	Columns int
}

// stall describes why parsing stopped early. Only Flush needs it.
type stall struct {
	quoted bool
	fields int
}

// Parse tokenizes text, treating it as the start of the input: a leading
// byte-order mark is skipped.
func Parse(text []byte, opts Options) Result {
	res, _ := parse(text, opts, true)
	return res
}

// ParseString is Parse for string input.
func ParseString(text string, opts Options) Result {
	return Parse([]byte(text), opts)
}

func parse(text []byte, opts Options, atStart bool) (Result, stall) {
	delim := opts.Delimiter
	if delim == 0 {
		delim = DefaultDelimiter
	}

	res := Result{Columns: opts.Columns}
	var st stall

	i := 0
	if atStart && bytes.HasPrefix(text, bom) {
		i = len(bom)
	}

	field := make([]byte, 0, 64)
	var fields []string
	inQuotes := false

	for i < len(text) {
		c := text[i]

		if inQuotes {
			if c != quote {
				field = append(field, c)
				i++
				continue
			}
			if i+1 >= len(text) {
				// Either a closing quote or the first half of an escape;
				// only more input can tell.
				break
			}
			if text[i+1] == quote {
				field = append(field, quote)
				i += 2
				continue
			}
			inQuotes = false
			i++
			continue
		}

		switch {
		case c == quote:
			inQuotes = true
			i++

		case c == delim:
			fields = append(fields, string(field))
			field = field[:0]
			i++

		case c == '\n' || (c == '\r' && i+1 < len(text) && text[i+1] == '\n'):
			next := i + 1
			if c == '\r' {
				next = i + 2
			}
			fields = append(fields, string(field))
			field = field[:0]

			if blank(fields) {
				res.Consumed = next
				fields = nil
				i = next
				continue
			}

			if res.Columns == 0 {
				res.Columns = len(fields)
			}
			if len(fields) != res.Columns {
				res.Incomplete = true
				st.fields = len(fields)
				return res, st
			}

			res.Records = append(res.Records, fields)
			res.Consumed = next
			fields = nil
			i = next

		default:
			field = append(field, c)
			i++
		}
	}

	if inQuotes {
		res.Incomplete = true
		st.quoted = true
	}
	return res, st
}

func blank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// Parser feeds successive chunks through Parse and keeps the unconsumed
// tail. A Parser is not safe for concurrent use; each input stream owns one.
type Parser struct {
	opts     Options
	buf      []byte
	consumed int64
	records  int64
}

// NewParser creates a parser. opts.Columns fixes the column count for the
// whole session; when zero the first record establishes it.
func NewParser(opts Options) *Parser {
	return &Parser{opts: opts}
}

// Write appends chunk to the buffer and returns every record that is now
// complete. Partial trailing input is retained for the next call.
func (p *Parser) Write(chunk []byte) [][]string {
	p.buf = append(p.buf, chunk...)
	res, _ := parse(p.buf, p.opts, p.consumed == 0)
	p.advance(res)
	return res.Records
}

// Flush signals end of input. A final record without a line terminator is
// accepted; anything still incomplete after that is a shape error.
func (p *Parser) Flush() ([][]string, error) {
	if len(p.buf) == 0 {
		return nil, nil
	}

	p.buf = append(p.buf, '\n')
	res, st := parse(p.buf, p.opts, p.consumed == 0)
	p.advance(res)
	if len(p.buf) == 0 {
		return res.Records, nil
	}

	var err *errors.Error
	switch {
	case st.quoted:
		err = errors.New(errors.ErrorTypeShape, "input ended inside a quoted field")
	case res.Incomplete:
		err = errors.Newf(errors.ErrorTypeShape, "record has %d fields, expected %d", st.fields, res.Columns).
			WithDetail("fields", st.fields).
			WithDetail("columns", res.Columns)
	default:
		err = errors.New(errors.ErrorTypeShape, "input ended inside a record")
	}
	err = err.WithDetail("offset", p.consumed).WithDetail("record", p.records+1)
	p.buf = p.buf[:0]
	return res.Records, err
}

func (p *Parser) advance(res Result) {
	if p.opts.Columns == 0 && res.Columns != 0 {
		p.opts.Columns = res.Columns
	}
	p.consumed += int64(res.Consumed)
	p.records += int64(len(res.Records))

	// The buffer is shifted rather than resliced so it never grows beyond
	// the largest unterminated record.
	n := copy(p.buf, p.buf[res.Consumed:])
	p.buf = p.buf[:n]
}

// Columns returns the established column count, or zero if none yet.
func (p *Parser) Columns() int {
	return p.opts.Columns
}

// Buffered returns the number of bytes held awaiting more input.
func (p *Parser) Buffered() int {
	return len(p.buf)
}
