package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	vertex "cloud.google.com/go/vertexai/genai"
)

// VertexProvider calls Gemini models through Vertex AI using application
// default credentials.
type VertexProvider struct {
	Model  string
	client *vertex.Client
}

// NewVertexProvider requires a project and location.
func NewVertexProvider(ctx context.Context, project, location, model string) (*VertexProvider, error) {
	if project == "" || location == "" {
		return nil, fmt.Errorf("%w: vertex project and location are required", ErrNotConfigured)
	}
	client, err := vertex.NewClient(ctx, project, location)
	if err != nil {
		return nil, fmt.Errorf("creating Vertex AI client: %w", err)
	}
	return &VertexProvider{Model: model, client: client}, nil
}

func (v *VertexProvider) IsConfigured() bool {
	return v.client != nil
}

func (v *VertexProvider) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	if v.client == nil {
		return "", ErrNotConfigured
	}
	model := v.client.GenerativeModel(v.Model)
	model.GenerationConfig = vertex.GenerationConfig{
		Temperature: vertex.Ptr(opts.Temperature),
	}
	if opts.MaxTokens > 0 {
		model.GenerationConfig.MaxOutputTokens = vertex.Ptr(int32(opts.MaxTokens))
	}

	resp, err := model.GenerateContent(ctx, vertex.Text(prompt))
	if err != nil {
		if isQuotaError(err) {
			return "", rateLimited(err)
		}
		return "", fmt.Errorf("vertex generate: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("vertex returned no candidates")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(vertex.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String(), nil
}

func (v *VertexProvider) Close() error {
	if v.client == nil {
		return nil
	}
	return v.client.Close()
}
