package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/kaptinlin/jsonrepair"
	"github.com/lshigami/intervue/config"
	"github.com/rs/zerolog/log"
	"go.uber.org/fx"
	"google.golang.org/api/option"
)

var ErrLLMUnavailable = errors.New("llm client not initialized")

type LLMRequest struct {
	Prompt      string
	Temperature float32
	MaxTokens   int32
}

// GeminiLLMService is the single gateway to the language model. Callers own
// fallbacks; every method returns an error instead of degraded content.
type GeminiLLMService interface {
	GenerateJSON(ctx context.Context, req LLMRequest, out interface{}) error
	GenerateText(ctx context.Context, req LLMRequest) (string, error)
}

type geminiLLMService struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGeminiLLMService closes the Gemini client when the app stops.
func NewGeminiLLMService(lc fx.Lifecycle, cfg *config.Config) (GeminiLLMService, error) {
	timeout := cfg.LLM.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	svc := &geminiLLMService{model: cfg.LLM.Model, timeout: timeout}
	if cfg.LLM.GeminiApiKey == "" {
		log.Warn().Msg("GEMINI_API_KEY is not set. LLM oracles will use fallbacks.")
	} else {
		client, err := genai.NewClient(context.Background(), option.WithAPIKey(cfg.LLM.GeminiApiKey))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Gemini client: %w", err)
		}
		svc.client = client
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return svc.close()
		},
	})
	return svc, nil
}

func (s *geminiLLMService) close() error {
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	if err != nil {
		return fmt.Errorf("failed to close Gemini client: %w", err)
	}
	log.Info().Msg("Gemini client closed")
	return nil
}

func (s *geminiLLMService) GenerateJSON(ctx context.Context, req LLMRequest, out interface{}) error {
	raw, err := s.generate(ctx, req, true)
	if err != nil {
		return err
	}
	cleaned := stripCodeFence(raw)
	if err := json.Unmarshal([]byte(cleaned), out); err == nil {
		return nil
	}
	repaired, err := jsonrepair.JSONRepair(cleaned)
	if err != nil {
		return fmt.Errorf("llm returned malformed JSON: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), out); err != nil {
		return fmt.Errorf("llm JSON does not match expected shape: %w", err)
	}
	log.Debug().Msg("Repaired malformed LLM JSON response")
	return nil
}

func (s *geminiLLMService) GenerateText(ctx context.Context, req LLMRequest) (string, error) {
	text, err := s.generate(ctx, req, false)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (s *geminiLLMService) generate(ctx context.Context, req LLMRequest, asJSON bool) (string, error) {
	if s.client == nil {
		return "", ErrLLMUnavailable
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	model := s.client.GenerativeModel(s.model)
	model.SetTemperature(req.Temperature)
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(req.MaxTokens)
	}
	if asJSON {
		model.ResponseMIMEType = "application/json"
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("gemini returned no content")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	if sb.Len() == 0 {
		return "", errors.New("gemini returned no text content")
	}
	return sb.String(), nil
}

// stripCodeFence removes a surrounding ```json fence some models add despite the MIME type.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
