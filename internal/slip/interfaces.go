package slip

import (
	"context"

	"google.golang.org/genai"
)

//go:generate mockgen -destination interfaces_mocks_test.go -package slip_test -source=interfaces.go

// Generator is the part of the Gemini client the extractor needs.
// *genai.Models satisfies it.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}
