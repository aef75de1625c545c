// Package backend defines the external collaborator interfaces the
// pipeline drives (OCR, VLM, embedding, rerank) plus the rate
// limiting and circuit breaking every call through them goes through.
package backend

import (
	"context"
	"time"
)

// Mode is an OCR quality/speed tradeoff tier.
type Mode string

const (
	ModeFast     Mode = "fast"
	ModeBalanced Mode = "balanced"
	ModeAccurate Mode = "accurate"
)

// TaskType distinguishes how an embedder should encode its input.
type TaskType string

const (
	TaskDocument TaskType = "document"
	TaskQuery    TaskType = "query"
)

// PageOffset maps a page number to its half-open character span over
// the extracted text.
type PageOffset struct {
	PageNumber int
	CharStart  int
	CharEnd    int
}

// ExtractedImage is a raw image an OCR pass pulled off a page, prior
// to being persisted by the OCR orchestrator.
type ExtractedImage struct {
	PageNumber int
	BBoxX      float64
	BBoxY      float64
	BBoxW      float64
	BBoxH      float64
	Format     string
	Width      int
	Height     int
	Bytes      []byte
	BlockType  string
}

// OCRResult is what an OCR backend returns for one document.
type OCRResult struct {
	Text         string
	TextLength   int
	PageCount    int
	PageOffsets  []PageOffset
	QualityScore float64
	CostCents    int64
	Duration     time.Duration
	Images       []ExtractedImage
	BlockJSON    string
	Metadata     map[string]any
}

// OCRBackend turns document bytes on disk into text plus structure.
type OCRBackend interface {
	Process(ctx context.Context, filePath string, mode Mode) (*OCRResult, error)
}

// VLMResult is what a VLM backend returns for one image.
type VLMResult struct {
	Description    string
	StructuredData string
	Confidence     float64
	TokensUsed     int
}

// VLMBackend describes an image given its bytes and a prompt.
type VLMBackend interface {
	Describe(ctx context.Context, imageBytes []byte, prompt string, mediaResolution string) (*VLMResult, error)
}

// Embedder turns a batch of texts into fixed-dimension vectors.
type Embedder interface {
	Embed(ctx context.Context, batch []string, task TaskType) ([][]float32, error)
	Dim() int
}

// RerankCandidate is one item a Reranker scores against a query.
type RerankCandidate struct {
	ID   int64
	Text string
}

// RerankResult pairs a candidate's ID with its remapped 0-10 score.
type RerankResult struct {
	ID    int64
	Score float64
}

// Reranker re-scores a bounded candidate set against a query.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []RerankCandidate) ([]RerankResult, error)
}
