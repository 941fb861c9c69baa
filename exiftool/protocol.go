package exiftool

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
	"unicode"
)

// Wire directives understood by exiftool's -stay_open mode.
const (
	executeDirective = "-execute"
	jsonFlag         = "-j"
	recurseFlag      = "-r"
)

// stopDirective makes exiftool leave -stay_open mode and exit.
var stopDirective = []byte("-stay_open\nFalse\n")

// startArgs returns the command line that puts exiftool in batch mode,
// reading arguments from stdin.
func startArgs(commonArgs []string) []string {
	args := []string{"-stay_open", "True", "-@", "-"}
	if len(commonArgs) > 0 {
		args = append(args, "-common_args")
		args = append(args, commonArgs...)
	}
	return args
}

// checkToken rejects arguments that would split into several lines of the
// argument stream.
func checkToken(tok string) error {
	if strings.ContainsAny(tok, "\r\n") {
		return fmt.Errorf("%w: %q contains a line break", ErrInvalidToken, tok)
	}
	return nil
}

// EncodeBatch frames a batch of arguments for the exiftool argument stream:
// one argument per line followed by -execute.
//
// Strings are passed through as raw bytes, so file names that are not
// valid UTF-8 reach exiftool unchanged.
func EncodeBatch(tokens ...string) ([]byte, error) {
	var buf bytes.Buffer
	for _, tok := range tokens {
		if err := checkToken(tok); err != nil {
			return nil, err
		}
		buf.WriteString(tok)
		buf.WriteByte('\n')
	}
	buf.WriteString(executeDirective)
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// sentinelWindow bounds how much of the tail is inspected per read.
const sentinelWindow = 32

// hasSentinel reports whether the accumulated output ends with the
// sentinel, ignoring trailing whitespace.
func hasSentinel(buf, sentinel []byte) bool {
	window := len(sentinel) + sentinelWindow
	tail := buf
	if len(tail) > window {
		tail = tail[len(tail)-window:]
	}
	return bytes.HasSuffix(bytes.TrimSpace(tail), sentinel)
}

// trimResponse strips surrounding whitespace, the sentinel and the
// whitespace separating it from the payload.
func trimResponse(buf, sentinel []byte) []byte {
	out := bytes.TrimSpace(buf)
	out = bytes.TrimSuffix(out, sentinel)
	return bytes.TrimRightFunc(out, unicode.IsSpace)
}

// DecodeJSON parses the output of a -j batch into records, preserving the
// order exiftool reported them in.
func DecodeJSON(raw []byte) ([]Record, error) {
	var records []Record
	for rec, err := range DecodeJSONStream(raw) {
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// DecodeJSONStream decodes the output of a -j batch one record at a time.
// Iteration stops at the first malformed element.
func DecodeJSONStream(raw []byte) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 {
			// exiftool prints nothing when no file matched
			return
		}

		dec := json.NewDecoder(bytes.NewReader(raw))
		tok, err := dec.Token()
		if err != nil {
			yield(nil, malformed(err))
			return
		}
		if delim, ok := tok.(json.Delim); !ok || delim != '[' {
			yield(nil, malformed(fmt.Errorf("expected array, got %v", tok)))
			return
		}

		for dec.More() {
			var rec Record
			if err := dec.Decode(&rec); err != nil {
				yield(nil, malformed(err))
				return
			}
			if rec == nil {
				yield(nil, malformed(errors.New("null record")))
				return
			}
			if !yield(rec, nil) {
				return
			}
		}

		if _, err := dec.Token(); err != nil {
			yield(nil, malformed(err))
			return
		}
		if _, err := dec.Token(); err != io.EOF {
			yield(nil, malformed(errors.New("trailing data after array")))
		}
	}
}

func malformed(err error) error {
	return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
}
