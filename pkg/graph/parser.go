package graph

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/OFFIS-RIT/mt2n/pkg/common"
	"github.com/OFFIS-RIT/mt2n/pkg/logger"
)

const (
	// every statement ends with " ."
	objectSuffixLen = 2

	DefaultMaxLineBytes = 4 << 20
)

var (
	errMissingFields   = errors.New("expected subject, predicate and object")
	errEmptyObject     = errors.New("empty object")
	errUnterminatedIRI = errors.New("unterminated IRI")
	errUnterminatedLit = errors.New("unterminated literal")
)

type statementKind int

const (
	propertyStatement statementKind = iota
	typeStatement
	edgeStatement
)

type statement struct {
	kind      statementKind
	subject   string
	predicate string
	object    string
}

// parseStatement splits one trimmed, non-blank line and classifies it.
// For type statements object holds the type name, for property statements
// the unquoted value, for edge statements the target raw id.
func parseStatement(line string) (statement, error) {
	fields := strings.SplitN(line, " ", 3)
	if len(fields) < 3 || fields[0] == "" || fields[1] == "" {
		return statement{}, errMissingFields
	}
	object := fields[2]
	if len(object) <= objectSuffixLen {
		return statement{}, errEmptyObject
	}
	object = object[:len(object)-objectSuffixLen]

	predicate, err := trimIRI(fields[1])
	if err != nil {
		return statement{}, err
	}
	st := statement{subject: fields[0], predicate: predicate}

	switch object[0] {
	case '_':
		st.kind = edgeStatement
		st.object = object
	case '<':
		name, err := trimIRI(object)
		if err != nil {
			return statement{}, err
		}
		st.kind = typeStatement
		st.object = name
	default:
		value, err := unquote(object)
		if err != nil {
			return statement{}, err
		}
		st.kind = propertyStatement
		st.object = value
	}
	return st, nil
}

func trimIRI(s string) (string, error) {
	if !strings.HasPrefix(s, "<") {
		return s, nil
	}
	if len(s) < 2 || !strings.HasSuffix(s, ">") {
		return "", errUnterminatedIRI
	}
	return s[1 : len(s)-1], nil
}

// unquote strips the quotes of a string literal, dropping any datatype or
// language tag after the closing quote. Unquoted values pass through.
func unquote(s string) (string, error) {
	quote := s[0]
	if quote != '"' && quote != '\'' {
		return s, nil
	}
	end := strings.LastIndexByte(s, quote)
	if end == 0 {
		return "", errUnterminatedLit
	}
	return s[1:end], nil
}

// isIgnored reports comment and directive lines. They do not end a block.
func isIgnored(line string) bool {
	return line[0] == '#' || line[0] == '@'
}

type stagedEntity struct {
	rawID      string
	entityType int
	properties map[string]string
}

type stagedEdge struct {
	line         int
	source       string
	target       string
	relationship int
}

// block stages the statements between two blank lines. order keeps the
// first-seen order of raw ids so commit order does not depend on map
// iteration.
type block struct {
	order    []*stagedEntity
	entities map[string]*stagedEntity
	edges    []stagedEdge
}

func newBlock() *block {
	return &block{entities: make(map[string]*stagedEntity)}
}

func (b *block) entity(rawID string) *stagedEntity {
	if e, ok := b.entities[rawID]; ok {
		return e
	}
	e := &stagedEntity{
		rawID:      rawID,
		entityType: common.UntypedEntity,
		properties: make(map[string]string),
	}
	b.entities[rawID] = e
	b.order = append(b.order, e)
	return e
}

func (b *block) empty() bool {
	return len(b.order) == 0 && len(b.edges) == 0
}

func (b *block) reset() {
	b.order = b.order[:0]
	b.entities = make(map[string]*stagedEntity)
	b.edges = b.edges[:0]
}

type blockParser struct {
	builder      *Builder
	file         string
	maxLineBytes int
	blk          *block
}

func newBlockParser(builder *Builder, file string) *blockParser {
	return &blockParser{
		builder:      builder,
		file:         file,
		maxLineBytes: builder.maxLineBytes,
		blk:          newBlock(),
	}
}

func (p *blockParser) parse(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, min(64*1024, p.maxLineBytes)), p.maxLineBytes)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		p.builder.stats.Lines++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			if err := p.flush(); err != nil {
				return err
			}
			continue
		}
		if isIgnored(line) {
			continue
		}
		if err := p.stage(lineNo, line); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return &ParseError{
				File:   p.file,
				Line:   lineNo + 1,
				Reason: fmt.Sprintf("line exceeds %d bytes", p.maxLineBytes),
			}
		}
		return &SourceError{File: p.file, Err: err}
	}
	return p.flush()
}

func (p *blockParser) stage(lineNo int, line string) error {
	st, err := parseStatement(line)
	if err != nil {
		return &ParseError{File: p.file, Line: lineNo, Text: line, Reason: err.Error()}
	}

	types := p.builder.types
	switch st.kind {
	case edgeStatement:
		p.blk.edges = append(p.blk.edges, stagedEdge{
			line:         lineNo,
			source:       st.subject,
			target:       st.object,
			relationship: types.InternRelationshipType(st.predicate),
		})
	case typeStatement:
		code := types.InternEntityType(st.object)
		e := p.blk.entity(st.subject)
		if e.entityType == common.UntypedEntity {
			e.entityType = code
		}
	default:
		p.blk.entity(st.subject).properties[st.predicate] = st.object
	}
	return nil
}

// flush commits the staged block: entities first in first-seen order, then
// edges in statement order.
func (p *blockParser) flush() error {
	if p.blk.empty() {
		return nil
	}
	b := p.builder
	b.stats.Blocks++

	for _, e := range p.blk.order {
		b.commitEntity(e.rawID, e.entityType, e.properties)
	}
	for _, e := range p.blk.edges {
		if err := b.commitEdge(e.source, e.target, e.relationship); err != nil {
			var refErr *ReferentialIntegrityError
			if errors.As(err, &refErr) {
				refErr.File = p.file
				refErr.Line = e.line
			}
			return err
		}
	}

	logger.Debug("[Ingest] Block committed", "file", p.file, "entities", len(p.blk.order), "edges", len(p.blk.edges))
	p.blk.reset()
	return nil
}
