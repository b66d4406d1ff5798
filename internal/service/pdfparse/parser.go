// Package pdfparse owns the PDF parsing interface and the section/offset
// bookkeeping the chunker depends on. Byte-level extraction is delegated
// to the single Extractor a Parser is built with; there is no selection by
// content type.
package pdfparse

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Section is a logical section of a parsed paper (for structure-aware
// chunking): a heading and the byte offset range from its heading line up
// to the next heading (or the end of the content).
type Section struct {
	Title       string
	StartOffset int
	EndOffset   int
}

// ParseResult is the output of parsing one paper PDF.
type ParseResult struct {
	Content  string
	Sections []Section
}

// Extractor turns raw PDF bytes into plain text. The production
// implementation is an external collaborator (a PDF binary parsing
// library or service); TextExtractor below is the trivial stand-in used
// when the source is already plain text (e.g. a cached abstract).
type Extractor interface {
	Extract(ctx context.Context, r io.Reader) (string, error)
}

// Parser parses one paper document into a ParseResult, splitting it into
// sections on all-caps heading lines.
type Parser struct {
	extractor Extractor
}

func New(extractor Extractor) *Parser {
	return &Parser{extractor: extractor}
}

func (p *Parser) Name() string { return "pdf" }

// Parse extracts text via the configured Extractor, then identifies
// section boundaries by scanning for heading-like lines so the chunker can
// attribute chunks to a section name.
func (p *Parser) Parse(ctx context.Context, r io.Reader) (*ParseResult, error) {
	content, err := p.extractor.Extract(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("pdfparse: extract: %w", err)
	}

	return &ParseResult{
		Content:  content,
		Sections: splitSections(content),
	}, nil
}

// splitSections scans line-by-line for heading candidates: trimmed lines
// of at most 80 bytes whose ASCII letters are all uppercase (at least one
// letter). A numbering prefix such as "1. " is allowed but does not make a
// mixed-case line a heading.
func splitSections(content string) []Section {
	lines := strings.Split(content, "\n")
	var sections []Section
	offset := 0
	var current *Section

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if isHeading(trimmed) {
			if current != nil {
				current.EndOffset = offset
				sections = append(sections, *current)
			}
			current = &Section{Title: trimmed, StartOffset: offset}
		}
		offset += len(line) + 1
	}
	if current != nil {
		current.EndOffset = offset
		sections = append(sections, *current)
	}
	return sections
}

func isHeading(line string) bool {
	if line == "" || len(line) > 80 {
		return false
	}
	letters, upper := 0, 0
	for _, r := range line {
		if r >= 'a' && r <= 'z' {
			letters++
		} else if r >= 'A' && r <= 'Z' {
			letters++
			upper++
		}
	}
	return letters > 0 && upper == letters
}

// TextExtractor is a pass-through Extractor for already-plain-text sources.
type TextExtractor struct{}

func (TextExtractor) Extract(_ context.Context, r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
