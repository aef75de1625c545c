package backend

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/brunobiangulo/docintel/llm"
)

// LLMEmbedder adapts an llm.Provider (ollama, openai, groq, ...) into
// an Embedder, the way the embedder façade expects to call out to a
// network backend rather than running inference locally.
type LLMEmbedder struct {
	provider llm.Provider
	dim      int
}

// NewLLMEmbedder wraps provider, fixing the vector dimension dim
// reports so Facade.EmbedChunks can validate shape before it ever
// reaches the vector index.
func NewLLMEmbedder(provider llm.Provider, dim int) *LLMEmbedder {
	return &LLMEmbedder{provider: provider, dim: dim}
}

func (e *LLMEmbedder) Dim() int { return e.dim }

func (e *LLMEmbedder) Embed(ctx context.Context, batch []string, task TaskType) ([][]float32, error) {
	return e.provider.Embed(ctx, batch)
}

// LLMVision adapts an llm.VisionProvider into a VLMBackend, describing
// one image per call the way the VLM orchestrator drives it.
type LLMVision struct {
	provider llm.VisionProvider
	model    string
}

func NewLLMVision(provider llm.VisionProvider, model string) *LLMVision {
	return &LLMVision{provider: provider, model: model}
}

func (v *LLMVision) Describe(ctx context.Context, imageBytes []byte, prompt string, mediaResolution string) (*VLMResult, error) {
	if prompt == "" {
		prompt = "Describe this image in detail, including any text, tables, or diagrams it contains."
	}
	encoded := base64.StdEncoding.EncodeToString(imageBytes)
	resp, err := v.provider.ChatWithImages(ctx, llm.VisionChatRequest{
		Model: v.model,
		Messages: []llm.VisionMessage{
			{
				Role: "user",
				Content: []llm.ContentPart{
					{Type: "text", Text: prompt},
					{Type: "image_url", ImageURL: &llm.ImageURL{URL: fmt.Sprintf("data:image/png;base64,%s", encoded)}},
				},
			},
		},
	})
	if err != nil {
		return nil, err
	}
	return &VLMResult{
		Description: resp.Content,
		Confidence:  1.0,
		TokensUsed:  resp.TotalTokens,
	}, nil
}
