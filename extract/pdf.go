package extract

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// pdfText returns the text of every page, pages separated by a blank line.
func (e *Extractor) pdfText(data []byte) (text string, err error) {
	if e.cropTop > 0 || e.cropBottom > 0 {
		data, err = cropPDF(data, e.cropTop, e.cropBottom)
		if err != nil {
			return "", err
		}
	}

	// the pdf reader panics on some malformed streams
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var pages []string
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		pageText, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		if pageText = strings.TrimSpace(pageText); pageText != "" {
			pages = append(pages, pageText)
		}
	}
	return strings.Join(pages, "\n\n"), nil
}

// cropPDF removes top and bottom margins, given in points (1 pt = 1/72 inch),
// from every page. Running headers and footers otherwise end up in every chunk.
func cropPDF(data []byte, top, bottom float64) ([]byte, error) {
	dir, err := os.MkdirTemp("", "vectorhook-crop-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "in.pdf")
	out := filepath.Join(dir, "out.pdf")
	if err := os.WriteFile(in, data, 0o600); err != nil {
		return nil, err
	}

	box, err := model.ParseBox(fmt.Sprintf("%.2f 0 %.2f 0", top, bottom), types.POINTS)
	if err != nil {
		return nil, fmt.Errorf("failed to parse crop box: %w", err)
	}

	if err := api.CropFile(in, out, []string{"1-"}, box, api.LoadConfiguration()); err != nil {
		return nil, fmt.Errorf("failed to crop PDF: %w", err)
	}
	return os.ReadFile(out)
}
