package llm

import (
	"errors"
	"testing"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"reelnotes/internal/services"
)

func TestClassifyVertexError(t *testing.T) {
	tests := []struct {
		code codes.Code
		want services.Kind
	}{
		{codes.ResourceExhausted, services.KindUpstreamRateLimited},
		{codes.Unavailable, services.KindTransientNetworkFailure},
		{codes.PermissionDenied, services.KindOperationalMisconfiguration},
		{codes.Unauthenticated, services.KindOperationalMisconfiguration},
	}
	for _, tc := range tests {
		err := classifyVertexError(status.Error(tc.code, "boom"))
		if got := services.KindOf(err); got != tc.want {
			t.Fatalf("code %s: expected %s, got %s", tc.code, tc.want, got)
		}
	}
}

func TestClassifyVertexBlocked(t *testing.T) {
	err := classifyVertexError(&genai.BlockedError{})
	if !errors.Is(err, ErrRefused) {
		t.Fatalf("expected refusal, got %v", err)
	}
}

func TestExtractVertexText(t *testing.T) {
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []genai.Part{genai.Text(`{"title":`), genai.Text(`"x"}`)}},
	}}}
	text, err := extractVertexText(resp)
	if err != nil || text != `{"title":"x"}` {
		t.Fatalf("unexpected extraction %q, %v", text, err)
	}

	_, err = extractVertexText(&genai.GenerateContentResponse{Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonSafety}}})
	if !errors.Is(err, ErrRefused) {
		t.Fatalf("expected safety refusal, got %v", err)
	}

	_, err = extractVertexText(&genai.GenerateContentResponse{})
	if services.KindOf(err) != services.KindUpstreamMalformedResponse {
		t.Fatalf("expected malformed response, got %v", err)
	}
}
