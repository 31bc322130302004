package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"golang.org/x/time/rate"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"reelnotes/internal/retry"
	"reelnotes/internal/services"
)

// VertexConfig describes the Gemini model reached through Vertex AI.
type VertexConfig struct {
	Project           string
	Region            string
	Model             string
	MaxAttempts       int
	RequestsPerMinute int
}

// VertexClient issues JSON completions against Gemini on Vertex AI.
type VertexClient struct {
	client  *genai.Client
	model   string
	policy  retry.Policy
	limiter *rate.Limiter
}

// NewVertexClient dials Vertex AI using application default credentials.
func NewVertexClient(ctx context.Context, cfg VertexConfig) (*VertexClient, error) {
	if strings.TrimSpace(cfg.Project) == "" {
		return nil, fmt.Errorf("vertex: project required: %w", services.ErrConfiguration)
	}
	client, err := genai.NewClient(ctx, cfg.Project, cfg.Region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w: %w", err, services.ErrConfiguration)
	}
	policy := retry.Default()
	if cfg.MaxAttempts > 0 {
		policy.MaxAttempts = cfg.MaxAttempts
	}
	policy.Retryable = retryable
	return &VertexClient{
		client:  client,
		model:   cfg.Model,
		policy:  policy,
		limiter: newLimiter(cfg.RequestsPerMinute),
	}, nil
}

// Close releases the underlying gRPC connection.
func (c *VertexClient) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// CompleteJSON sends the prompts with a JSON response MIME type and returns the text payload.
func (c *VertexClient) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	systemPrompt = strings.TrimSpace(systemPrompt)
	userPrompt = strings.TrimSpace(userPrompt)
	if systemPrompt == "" || userPrompt == "" {
		return "", errors.New("vertex complete: system and user prompts required")
	}
	model := c.client.GenerativeModel(c.model)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt)},
	}
	model.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0),
	}

	var content string
	err := c.policy.Do(ctx, "vertex complete", func(ctx context.Context, _ int) error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		resp, err := model.GenerateContent(ctx, genai.Text(userPrompt))
		if err != nil {
			return classifyVertexError(err)
		}
		text, err := extractVertexText(resp)
		if err != nil {
			return err
		}
		content = text
		return nil
	})
	if err != nil {
		return "", err
	}
	return content, nil
}

// HealthCheck verifies credentials and model availability with a trivial prompt.
func (c *VertexClient) HealthCheck(ctx context.Context) error {
	content, err := c.CompleteJSON(ctx, "You must respond with JSON only.", `Respond with {"ok":true}`)
	if err != nil {
		return err
	}
	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := DecodeLLMJSON(content, &parsed); err != nil {
		return fmt.Errorf("vertex health: parse payload: %w", err)
	}
	if !parsed.OK {
		return errors.New("vertex health: unexpected response")
	}
	return nil
}

func extractVertexText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("vertex complete: no candidates: %w", services.ErrMalformedResponse)
	}
	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", fmt.Errorf("vertex complete: safety stop: %w", ErrRefused)
	}
	var b strings.Builder
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if txt, ok := part.(genai.Text); ok {
				b.WriteString(string(txt))
			}
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", &EmptyContentError{
			Op:           "vertex complete",
			FinishReason: fmt.Sprint(candidate.FinishReason),
			Snippet:      "<empty>",
		}
	}
	return text, nil
}

func classifyVertexError(err error) error {
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return fmt.Errorf("vertex complete: %w: %w", err, ErrRefused)
	}
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("vertex complete: %w", err)
	}
	var marker error
	switch st.Code() {
	case codes.ResourceExhausted:
		marker = services.ErrRateLimited
	case codes.Unavailable, codes.DeadlineExceeded, codes.Aborted, codes.Internal:
		marker = services.ErrTransient
	case codes.Unauthenticated, codes.PermissionDenied, codes.NotFound, codes.InvalidArgument, codes.FailedPrecondition:
		marker = services.ErrConfiguration
	case codes.Canceled:
		return fmt.Errorf("vertex complete: %w", context.Canceled)
	default:
		marker = services.ErrTransient
	}
	return fmt.Errorf("vertex complete: %s: %w", st.Message(), marker)
}
