package pipeline

import (
	"context"

	"github.com/amara/fund-radar/internal/ai"
)

// AICapability is the single abstracted interface the pipeline uses for AI
// operations. Failures are transient (ai.ServiceError) and retried by the
// orchestrator.
type AICapability interface {
	ClassifyContent(ctx context.Context, title, body string) (*ai.ClassifyResult, error)
	AssessValidity(ctx context.Context, title, body string) (*ai.ValidityResult, error)
	ExtractFundingFields(ctx context.Context, title, url, text string) (*ai.ExtractedFields, error)
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// OllamaCapability adapts the Ollama client to the AICapability interface.
type OllamaCapability struct {
	Client *ai.OllamaClient
}

func (c *OllamaCapability) ClassifyContent(ctx context.Context, title, body string) (*ai.ClassifyResult, error) {
	return ai.ClassifyContent(ctx, c.Client, title, body)
}

func (c *OllamaCapability) AssessValidity(ctx context.Context, title, body string) (*ai.ValidityResult, error) {
	return ai.AssessValidity(ctx, c.Client, title, body)
}

func (c *OllamaCapability) ExtractFundingFields(ctx context.Context, title, url, text string) (*ai.ExtractedFields, error) {
	return ai.ExtractFundingFields(ctx, c.Client, title, url, text)
}

func (c *OllamaCapability) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	return c.Client.GenerateEmbedding(ctx, text)
}
