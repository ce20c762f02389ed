// Package parse turns raw page bytes into a document tree, falling back
// through progressively more forgiving preparations of the input when the
// strict parser rejects it.
package parse

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"

	"github.com/hyperifyio/pagefeed/internal/extract"
	"github.com/hyperifyio/pagefeed/internal/repair"
	"github.com/hyperifyio/pagefeed/internal/textutil"
)

// MaxDocumentSize caps input handed to the structural parser.
const MaxDocumentSize = 10 * 1024 * 1024

// SyntaxError describes why the strict parser refused its input.
type SyntaxError struct {
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s at offset %d", e.Msg, e.Offset)
}

// Unparseable is returned when every strategy failed. It carries the first
// failure only; later strategies work on lossier input and their errors say
// less about the original document.
type Unparseable struct {
	Strategy string
	Err      error
}

func (e *Unparseable) Error() string {
	return fmt.Sprintf("parsing (%s) failed: %v", e.Strategy, e.Err)
}

func (e *Unparseable) Unwrap() error { return e.Err }

// Strategy prepares raw content for the parser.
type Strategy struct {
	Name    string
	Prepare func(raw []byte) ([]byte, error)
}

// Strategies returns the fallback order: direct, charset, ascii.
func Strategies() []Strategy {
	return []Strategy{
		{Name: "direct", Prepare: func(raw []byte) ([]byte, error) { return raw, nil }},
		{Name: "charset", Prepare: unicodeCleansed},
		{Name: "ascii", Prepare: asciiCleansed},
	}
}

func unicodeCleansed(raw []byte) ([]byte, error) {
	decoded, _, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	return []byte(repair.Apply(string(decoded))), nil
}

func asciiCleansed(raw []byte) ([]byte, error) {
	return []byte(repair.Apply(textutil.ASCII(raw))), nil
}

// Chain runs the strategies in order against a structural parser.
// The zero value uses Strict and logs each failure.
type Chain struct {
	// Parser defaults to Strict.
	Parser func([]byte) (*html.Node, error)
	// Notify is called once per failed strategy.
	Notify func(strategy string, err error)
}

// Parse returns the first document any strategy produces, with anchor and
// image references made absolute against baseHref.
func (c *Chain) Parse(raw []byte, baseHref string) (*html.Node, error) {
	parser := c.Parser
	if parser == nil {
		parser = Strict
	}
	var first *Unparseable
	for _, s := range Strategies() {
		doc, err := c.try(s, parser, raw)
		if err == nil {
			log.Debug().Str("strategy", s.Name).Msg("parsed document")
			extract.Absolutize(doc, baseHref)
			return doc, nil
		}
		if first == nil {
			first = &Unparseable{Strategy: s.Name, Err: err}
		}
		c.notify(s.Name, err)
	}
	return nil, first
}

func (c *Chain) try(s Strategy, parser func([]byte) (*html.Node, error), raw []byte) (*html.Node, error) {
	content, err := s.Prepare(raw)
	if err != nil {
		return nil, err
	}
	return parser(content)
}

func (c *Chain) notify(strategy string, err error) {
	if c.Notify != nil {
		c.Notify(strategy, err)
		return
	}
	log.Warn().Err(err).Str("strategy", strategy).Msg("parsing failed")
}

// Strict parses content with html.Parse after rejecting input the HTML
// tokenizer would otherwise paper over: oversized documents, NUL bytes and
// invalid UTF-8.
func Strict(content []byte) (*html.Node, error) {
	if len(content) > MaxDocumentSize {
		return nil, &SyntaxError{Offset: MaxDocumentSize, Msg: fmt.Sprintf("document exceeds %d bytes", MaxDocumentSize)}
	}
	if i := bytes.IndexByte(content, 0); i >= 0 {
		return nil, &SyntaxError{Offset: i, Msg: "unexpected NUL byte"}
	}
	if i := invalidUTF8(content); i >= 0 {
		return nil, &SyntaxError{Offset: i, Msg: "invalid UTF-8"}
	}
	return html.Parse(bytes.NewReader(content))
}

func invalidUTF8(b []byte) int {
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size <= 1 {
			return i
		}
		i += size
	}
	return -1
}
