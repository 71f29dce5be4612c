// Package chunker splits text into overlapping, size-bounded chunks.
//
// Sizes are measured in characters (unicode code points), not bytes.
package chunker

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	DefaultMinSize = 256
	DefaultMaxSize = 512
	DefaultOverlap = 50

	// ShortTextLimit: a text shorter than this is returned as a single chunk
	// whatever the size options say.
	ShortTextLimit = 500

	// ParagraphLimit: in paragraph mode a paragraph up to this length is
	// emitted whole; longer ones are windowed.
	ParagraphLimit = 500
)

var ErrInvalidArgument = errors.New("chunker: invalid argument")

type Mode int

const (
	// Bounded cuts fixed windows over the whole text.
	Bounded Mode = iota
	// Paragraph cuts on blank lines first and windows only long paragraphs.
	Paragraph
)

func (m Mode) String() string {
	if m == Paragraph {
		return "paragraph"
	}
	return "bounded"
}

type Options struct {
	MinSize int
	MaxSize int
	Overlap int
}

func DefaultOptions() Options {
	return Options{
		MinSize: DefaultMinSize,
		MaxSize: DefaultMaxSize,
		Overlap: DefaultOverlap,
	}
}

// Validate rejects options for which the window would not move forward.
func (o Options) Validate() error {
	switch {
	case o.MaxSize <= 0:
		return fmt.Errorf("%w: max size %d must be positive", ErrInvalidArgument, o.MaxSize)
	case o.MinSize < 0:
		return fmt.Errorf("%w: min size %d must not be negative", ErrInvalidArgument, o.MinSize)
	case o.MinSize > o.MaxSize:
		return fmt.Errorf("%w: min size %d exceeds max size %d", ErrInvalidArgument, o.MinSize, o.MaxSize)
	case o.Overlap < 0 || o.Overlap >= o.MaxSize:
		return fmt.Errorf("%w: overlap %d must be in [0, %d)", ErrInvalidArgument, o.Overlap, o.MaxSize)
	}
	return nil
}

var paragraphBreak = regexp.MustCompile(`\n[ \t\r\f\v]*\n`)

// Split dispatches to ByLength or ByParagraph.
func Split(text string, mode Mode, opts Options) ([]string, error) {
	if mode == Paragraph {
		return ByParagraph(text, opts)
	}
	return ByLength(text, opts)
}

// ByLength trims the text and, unless it is shorter than ShortTextLimit,
// cuts it into windows of opts.MaxSize characters that advance by
// MaxSize-Overlap. Whitespace-only input yields no chunks.
func ByLength(text string, opts Options) ([]string, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	runes := []rune(text)
	if len(runes) < ShortTextLimit {
		return []string{text}, nil
	}
	return window(runes, opts), nil
}

// ByParagraph splits on blank lines, drops empty paragraphs and windows every
// paragraph longer than ParagraphLimit. Paragraph order is kept.
func ByParagraph(text string, opts Options) ([]string, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	var chunks []string
	for _, p := range paragraphBreak.Split(text, -1) {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		runes := []rune(p)
		if len(runes) <= ParagraphLimit {
			chunks = append(chunks, p)
			continue
		}
		chunks = append(chunks, window(runes, opts)...)
	}
	return chunks, nil
}

// window stops as soon as a window reaches the end of the text, so the last
// chunk is never fully contained in the previous one.
func window(runes []rune, opts Options) []string {
	step := opts.MaxSize - opts.Overlap
	chunks := make([]string, 0, len(runes)/step+1)

	for start := 0; start < len(runes); start += step {
		end := start + opts.MaxSize
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
