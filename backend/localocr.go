package backend

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/brunobiangulo/docintel/docerr"
	"github.com/brunobiangulo/docintel/parser"
)

// LocalOCR is the default OCR backend: structural parsing for
// PDF/DOCX/XLSX/PPTX via the parser registry (ledongthuc/pdf and
// xuri/excelize under the hood), and plain UTF-8 passthrough for
// anything else. It never calls out to a network API unless LlamaParse
// is configured for legacy binary formats, so mode is accepted but has
// no effect beyond being recorded.
type LocalOCR struct {
	registry *parser.Registry
}

func NewLocalOCR() *LocalOCR {
	return &LocalOCR{registry: parser.NewRegistry()}
}

// WithLlamaParse registers LlamaParse as the fallback for legacy
// binary formats (doc/ppt and old-style xls) the native parsers can't
// read.
func (o *LocalOCR) WithLlamaParse(cfg parser.LlamaParseConfig) *LocalOCR {
	o.registry.SetLlamaParse(cfg)
	return o
}

func (o *LocalOCR) Process(ctx context.Context, filePath string, mode Mode) (*OCRResult, error) {
	start := time.Now()

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filePath)), ".")
	switch ext {
	case "pdf", "docx", "xlsx", "xls", "pptx", "doc", "ppt":
		return o.processViaRegistry(ctx, filePath, ext, start)
	default:
		return o.processPlainText(filePath, start)
	}
}

func (o *LocalOCR) processViaRegistry(ctx context.Context, filePath, ext string, start time.Time) (*OCRResult, error) {
	p, err := o.registry.Get(ext)
	if err != nil {
		return nil, docerr.Wrap(docerr.CategoryOCRAPIError, "no parser registered for format", err)
	}
	result, err := p.Parse(ctx, filePath)
	if err != nil {
		return nil, docerr.Wrap(docerr.CategoryOCRAPIError, fmt.Sprintf("parsing %s", filePath), err)
	}

	var sb strings.Builder
	var offsets []PageOffset
	maxPage := 0
	for _, sec := range result.Sections {
		s := sb.Len()
		if sec.Heading != "" {
			sb.WriteString(sec.Heading)
			sb.WriteString("\n")
		}
		sb.WriteString(sec.Content)
		sb.WriteString("\n")
		offsets = append(offsets, PageOffset{PageNumber: sec.PageNumber, CharStart: s, CharEnd: sb.Len()})
		if sec.PageNumber > maxPage {
			maxPage = sec.PageNumber
		}
	}
	if maxPage == 0 {
		maxPage = 1
	}

	images := make([]ExtractedImage, len(result.Images))
	for i, img := range result.Images {
		images[i] = ExtractedImage{
			PageNumber: img.PageNumber,
			Format:     strings.TrimPrefix(img.MIMEType, "image/"),
			Width:      img.Width,
			Height:     img.Height,
			Bytes:      img.Data,
		}
	}

	quality := 0.9
	if ext == "pdf" {
		// Tables and multi-column layouts degrade plain-text extraction
		// fidelity; flag it so a caller can decide whether to route the
		// page images through the VLM orchestrator. DetectComplexity does
		// not inspect embedded images, so they do not lower the score.
		if cs, err := parser.DetectComplexity(filePath); err == nil && cs.IsComplex() {
			quality = 1.0 - cs.Score
		}
	}

	text := sb.String()
	return &OCRResult{
		Text:         text,
		TextLength:   len(text),
		PageCount:    maxPage,
		PageOffsets:  offsets,
		QualityScore: quality,
		Duration:     time.Since(start),
		Images:       images,
		Metadata:     map[string]any{"backend": "local", "method": result.Method},
	}, nil
}

func (o *LocalOCR) processPlainText(filePath string, start time.Time) (*OCRResult, error) {
	b, err := os.ReadFile(filePath)
	if err != nil {
		return nil, docerr.Wrap(docerr.CategoryOCRAPIError, fmt.Sprintf("reading %s", filePath), err)
	}
	text := string(b)
	return &OCRResult{
		Text:         text,
		TextLength:   len(text),
		PageCount:    1,
		PageOffsets:  []PageOffset{{PageNumber: 1, CharStart: 0, CharEnd: len(text)}},
		QualityScore: 1.0,
		Duration:     time.Since(start),
		Metadata:     map[string]any{"backend": "local", "method": "passthrough"},
	}, nil
}
