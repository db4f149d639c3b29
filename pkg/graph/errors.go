package graph

import (
	"fmt"
	"strings"
)

// ConfigurationError reports a malformed or missing configuration entry.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("invalid configuration: %s", e.Reason)
	}
	return fmt.Sprintf("invalid configuration %s: %s", e.Key, e.Reason)
}

// ParseError reports a line that does not decompose into subject, predicate
// and object. The block being staged is inconsistent afterwards.
type ParseError struct {
	File   string
	Line   int
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s: %q", e.File, e.Line, e.Reason, e.Text)
}

// ReferentialIntegrityError reports an edge statement whose endpoint was
// never committed by the current or an earlier block.
type ReferentialIntegrityError struct {
	File        string
	Line        int
	SourceRawID string
	TargetRawID string
	Missing     []string
}

func (e *ReferentialIntegrityError) Error() string {
	return fmt.Sprintf(
		"%s:%d: edge %s -> %s references unknown id(s) %s",
		e.File, e.Line, e.SourceRawID, e.TargetRawID, strings.Join(e.Missing, ", "),
	)
}

// SourceError reports a source that could not be opened or read.
type SourceError struct {
	File string
	Err  error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("failed to read source %s: %v", e.File, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}
