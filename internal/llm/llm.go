package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/sokinpui/gfix/internal/history"
)

var (
	ErrMissingAPIKey = errors.New("missing GEMINI_API_KEY")
	ErrRequestFailed = errors.New("model request failed")
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.0-flash"

// Generator is the model call boundary. A call either returns the reply
// text (possibly empty) or fails with a human-readable error.
type Generator interface {
	Generate(ctx context.Context, turns []history.Turn) (string, error)
}

// Gemini generates replies through the Gemini API.
type Gemini struct {
	apiKey string
	model  string
	log    *zap.Logger

	once   sync.Once
	client *genai.Client
	err    error
}

// NewGemini returns a Gemini generator. The client is created on first use;
// an empty apiKey makes every call fail with ErrMissingAPIKey.
func NewGemini(apiKey, model string, log *zap.Logger) *Gemini {
	if model == "" {
		model = DefaultModel
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Gemini{apiKey: apiKey, model: model, log: log}
}

func (g *Gemini) connect(ctx context.Context) (*genai.Client, error) {
	g.once.Do(func() {
		if g.apiKey == "" {
			g.err = ErrMissingAPIKey
			return
		}
		g.client, g.err = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  g.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if g.err != nil {
			g.err = fmt.Errorf("failed to create Gemini client: %w", g.err)
		}
	})
	return g.client, g.err
}

// Generate sends turns in order and returns the concatenated reply text.
func (g *Gemini) Generate(ctx context.Context, turns []history.Turn) (string, error) {
	client, err := g.connect(ctx)
	if err != nil {
		return "", err
	}

	g.log.Debug("generate content",
		zap.String("model", g.model),
		zap.Int("turns", len(turns)),
		zap.Int("est_tokens", EstimateTurns(turns)),
	)
	resp, err := client.Models.GenerateContent(ctx, g.model, Contents(turns), nil)
	if err != nil {
		g.log.Error("generate content failed", zap.Error(err))
		return "", fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	return resp.Text(), nil
}

// Contents converts conversation turns into genai request contents.
func Contents(turns []history.Turn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		role := genai.Role(genai.RoleUser)
		if t.Role == history.RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(t.Text, role))
	}
	return contents
}

// IsEmpty reports whether a reply carries no usable text.
func IsEmpty(reply string) bool {
	return strings.TrimSpace(reply) == ""
}
