package etl

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// ── Sink ───────────────────────────────────────────────────
// A Sink receives fully assembled rows. A row is only handed over once
// complete, so a failed run never leaves half a row behind.

// Sink writes rows to a target system.
type Sink interface {
	// Begin is called once before the first row with the declared field names.
	Begin(ctx context.Context, names []string) error

	WriteRow(ctx context.Context, row Row) error

	// Close finishes the output. A non-nil cause means the run failed: rows
	// already written are kept but the output is not finalized.
	Close(ctx context.Context, cause error) error
}

// ── CSV Sink ───────────────────────────────────────────────

// CSVOptions configures delimited text output.
type CSVOptions struct {
	Delimiter rune   // default ','
	Header    bool   // write the declared field names first
	PsqlTable string // wrap output in "COPY <table> FROM stdin" framing
	NullValue string // only used to describe the null text to COPY
	Encoding  string // any WHATWG encoding label, default utf-8
}

// CSVSink writes rows as delimited text with CRLF record terminators and
// minimal quoting: fields containing the delimiter, a quote or a line break
// are quoted, as are fields starting with whitespace such as a space or tab.
// Embedded quotes are doubled. The lone field `\.` is quoted too so it cannot
// end a psql COPY block. Line breaks inside values are written unchanged.
type CSVSink struct {
	opts    CSVOptions
	out     *bufio.Writer
	encoder *transform.Writer
	line    bytes.Buffer
	w       *csv.Writer
}

// NewCSVSink returns a sink writing to w. w is not closed by the sink.
func NewCSVSink(w io.Writer, opts CSVOptions) (*CSVSink, error) {
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}
	if !validDelimiter(opts.Delimiter) {
		return nil, fmt.Errorf("invalid delimiter %q", opts.Delimiter)
	}

	s := &CSVSink{opts: opts}
	target := w
	if name := strings.TrimSpace(opts.Encoding); name != "" {
		enc, err := htmlindex.Get(name)
		if err != nil {
			return nil, fmt.Errorf("unknown encoding %q: %w", name, err)
		}
		if canonical, _ := htmlindex.Name(enc); canonical != "utf-8" {
			s.encoder = transform.NewWriter(w, enc.NewEncoder())
			target = s.encoder
		}
	}
	s.out = bufio.NewWriter(target)

	// Records are encoded one at a time into line; writeRecord swaps the
	// "\n" terminator for "\r\n".
	s.w = csv.NewWriter(&s.line)
	s.w.Comma = opts.Delimiter
	return s, nil
}

func validDelimiter(r rune) bool {
	return r != '"' && r != '\r' && r != '\n' && utf8.ValidRune(r) && r != utf8.RuneError
}

func (s *CSVSink) Begin(_ context.Context, names []string) error {
	if s.opts.PsqlTable != "" {
		if _, err := s.out.WriteString(s.copyStatement()); err != nil {
			return fmt.Errorf("write copy header: %w", err)
		}
	}
	if s.opts.Header {
		if err := s.writeRecord(names); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	return nil
}

// copyStatement builds the COPY line; options are only spelled out when
// they differ from Postgres' CSV defaults.
func (s *CSVSink) copyStatement() string {
	opts := []string{"FORMAT csv"}
	if s.opts.Delimiter != ',' {
		opts = append(opts, "DELIMITER "+quoteLiteral(string(s.opts.Delimiter)))
	}
	if s.opts.NullValue != "" {
		opts = append(opts, "NULL "+quoteLiteral(s.opts.NullValue))
	}
	if s.opts.Header {
		opts = append(opts, "HEADER true")
	}
	return fmt.Sprintf("COPY %s FROM stdin WITH (%s);\n", s.opts.PsqlTable, strings.Join(opts, ", "))
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func (s *CSVSink) WriteRow(_ context.Context, row Row) error {
	return s.writeRecord(row)
}

// writeRecord quotes one record and terminates it with CRLF.
func (s *CSVSink) writeRecord(record []string) error {
	s.line.Reset()
	if err := s.w.Write(record); err != nil {
		return err
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return err
	}
	if _, err := s.out.Write(bytes.TrimSuffix(s.line.Bytes(), []byte("\n"))); err != nil {
		return err
	}
	_, err := s.out.WriteString("\r\n")
	return err
}

func (s *CSVSink) Close(_ context.Context, cause error) error {
	var err error
	if cause == nil && s.opts.PsqlTable != "" {
		_, err = s.out.WriteString("\\.\n")
	}
	if ferr := s.out.Flush(); err == nil {
		err = ferr
	}
	if s.encoder != nil {
		if cerr := s.encoder.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
