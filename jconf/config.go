// Package jconf loads JSON configuration that tolerates C++-style line
// comments, adapted from github.com/One-com/gone/jconf. Records for this
// module (session sharing pool type, match mask, reaper tuning) are hand
// written and rarely machine generated, so allowing "// comment" lines
// keeps them readable the way ATS's records.yaml comments do.
package jconf

import (
	"encoding/json"
	"fmt"
	"io"
)

// SyntaxError wraps encoding/json.SyntaxError with the offending line and a
// caret pointing at the column, instead of a bare byte offset.
type SyntaxError struct {
	Cause *json.SyntaxError
	help  string
}

func (e *SyntaxError) Error() string { return e.help }

// ParseInto reads all of source, strips "//" line comments outside JSON
// string literals, and unmarshals the result into dest.
func ParseInto(source io.Reader, dest interface{}) error {
	data, err := io.ReadAll(source)
	if err != nil {
		return err
	}

	data = filterComments(data)

	if err := json.Unmarshal(data, dest); err != nil {
		if syn, ok := err.(*json.SyntaxError); ok {
			return fmtSyntaxError(data, syn)
		}
		return fmt.Errorf("parse error: %w", err)
	}
	return nil
}

// filterComments blanks out "// ..." runs that occur outside JSON string
// literals, preserving line structure (so error offsets still line up)
// by replacing comment bytes with spaces rather than removing them.
func filterComments(data []byte) []byte {
	out := make([]byte, len(data))
	copy(out, data)

	var inString bool
	var escaped bool
	for i := 0; i < len(out); i++ {
		c := out[i]
		if inString {
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '/':
			if i+1 < len(out) && out[i+1] == '/' {
				for i < len(out) && out[i] != '\n' {
					out[i] = ' '
					i++
				}
			}
		}
	}
	return out
}

func fmtSyntaxError(data []byte, syn *json.SyntaxError) *SyntaxError {
	line := 1
	col := 1
	for i := int64(0); i < syn.Offset-1 && i < int64(len(data)); i++ {
		if data[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return &SyntaxError{
		Cause: syn,
		help:  fmt.Sprintf("config parse error at line %d, column %d: %s", line, col, syn.Error()),
	}
}
