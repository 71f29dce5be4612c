// Package extract turns uploaded files into plain text.
package extract

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/text/encoding/unicode"
)

type Kind string

const (
	KindText Kind = "txt"
	KindPDF  Kind = "pdf"
	KindDOCX Kind = "docx"
	KindCSV  Kind = "csv"
)

const docxMIME = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

var ErrUnsupportedFormat = errors.New("unsupported file format")

// Source is the text extracted from one file.
type Source struct {
	Name string
	Kind Kind
	Text string
}

// Paragraphed reports whether the text keeps page or paragraph structure
// as blank lines.
func (s Source) Paragraphed() bool {
	return s.Kind == KindPDF || s.Kind == KindDOCX
}

type Extractor struct {
	cropTop    float64
	cropBottom float64
	logger     *slog.Logger
}

type Option func(*Extractor)

// WithPDFCrop cuts top and bottom margins (in points) off every PDF page
// before reading text. Zero leaves the page alone.
func WithPDFCrop(top, bottom float64) Option {
	return func(e *Extractor) {
		e.cropTop = top
		e.cropBottom = bottom
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) {
		e.logger = l
	}
}

func New(opts ...Option) *Extractor {
	e := &Extractor{logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DetectKind picks the format from the file extension, falling back to
// content sniffing when the extension is missing or unknown.
func DetectKind(name string, data []byte) (Kind, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt":
		return KindText, nil
	case ".pdf":
		return KindPDF, nil
	case ".docx":
		return KindDOCX, nil
	case ".csv":
		return KindCSV, nil
	}

	mt := mimetype.Detect(data)
	switch {
	case mt.Is("application/pdf"):
		return KindPDF, nil
	case mt.Is(docxMIME):
		return KindDOCX, nil
	case mt.Is("text/csv"):
		return KindCSV, nil
	case mt.Is("text/plain"):
		return KindText, nil
	}
	return "", fmt.Errorf("%w: %s (%s)", ErrUnsupportedFormat, name, mt.String())
}

// Extract returns the text of one file. A file that yields no text is
// reported with an empty Source.Text and no error.
func (e *Extractor) Extract(name string, data []byte) (Source, error) {
	kind, err := DetectKind(name, data)
	if err != nil {
		return Source{}, err
	}

	var text string
	switch kind {
	case KindText:
		text, err = decodeText(data)
	case KindPDF:
		text, err = e.pdfText(data)
	case KindDOCX:
		text, err = docxText(data)
	case KindCSV:
		text, err = csvText(data)
	}
	if err != nil {
		return Source{}, fmt.Errorf("extract %s: %w", name, err)
	}

	e.logger.Debug("[EXTRACT] file read", "file", name, "kind", kind, "chars", len(text))
	return Source{Name: name, Kind: kind, Text: text}, nil
}

// decodeText reads UTF-8, dropping a byte order mark and replacing invalid
// sequences.
func decodeText(data []byte) (string, error) {
	out, err := unicode.UTF8BOM.NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// csvText normalizes the table through a CSV reader. Input that does not
// parse as a rectangular table is passed through as plain text.
func csvText(data []byte) (string, error) {
	raw, err := decodeText(data)
	if err != nil {
		return "", err
	}

	records, err := csv.NewReader(strings.NewReader(raw)).ReadAll()
	if err != nil {
		return raw, nil
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(records); err != nil {
		return raw, nil
	}
	return buf.String(), nil
}
