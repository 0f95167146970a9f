package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lshigami/intervue/config"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	defaultCodeTimeoutMs  = 10000
	defaultCodeMemoryMb   = 128
	defaultCodeLanguage   = "javascript"
	sandboxUnavailableMsg = "Sandbox unavailable or timed out"
)

var judge0Languages = map[string]int{
	"javascript": 63,
	"typescript": 74,
	"python":     71,
	"java":       62,
	"cpp":        54,
	"c":          50,
	"go":         60,
	"rust":       73,
	"sql":        82,
}

type SandboxRunOptions struct {
	Code          string
	Language      string
	Stdin         string
	TimeoutMs     int
	MemoryLimitMb int
}

type SandboxResult struct {
	Stdout          string
	Stderr          string
	CompileError    string
	RuntimeError    string
	ExecutionTimeMs int
	MemoryUsedMb    int
	StatusCode      int
}

// SandboxService runs untrusted code. RunCode never returns an error: transport
// failures come back as a result with RuntimeError set and StatusCode -1.
type SandboxService interface {
	RunCode(ctx context.Context, opts SandboxRunOptions) SandboxResult
}

type judge0SandboxService struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
}

func NewSandboxService(cfg *config.Config) SandboxService {
	rps := cfg.Sandbox.RatePerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := cfg.Sandbox.Burst
	if burst <= 0 {
		burst = 1
	}
	return &judge0SandboxService{
		baseURL: strings.TrimRight(cfg.Sandbox.Judge0URL, "/"),
		apiKey:  cfg.Sandbox.Judge0ApiKey,
		client:  &http.Client{},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

type judge0Submission struct {
	LanguageID   int    `json:"language_id"`
	SourceCode   string `json:"source_code"`
	Stdin        string `json:"stdin"`
	CPUTimeLimit int    `json:"cpu_time_limit"`
	MemoryLimit  int    `json:"memory_limit"`
}

type judge0Response struct {
	Stdout        *string `json:"stdout"`
	Stderr        *string `json:"stderr"`
	CompileOutput *string `json:"compile_output"`
	Time          *string `json:"time"`
	Memory        *int    `json:"memory"`
	Status        *struct {
		ID          int    `json:"id"`
		Description string `json:"description"`
	} `json:"status"`
}

func judge0LanguageID(language string) int {
	if id, ok := judge0Languages[strings.ToLower(language)]; ok {
		return id
	}
	return judge0Languages[defaultCodeLanguage]
}

func (s *judge0SandboxService) RunCode(ctx context.Context, opts SandboxRunOptions) SandboxResult {
	if opts.TimeoutMs <= 0 {
		opts.TimeoutMs = defaultCodeTimeoutMs
	}
	if opts.MemoryLimitMb <= 0 {
		opts.MemoryLimitMb = defaultCodeMemoryMb
	}

	resp, err := s.submit(ctx, opts)
	if err != nil {
		log.Error().Err(err).Str("language", opts.Language).Msg("Sandbox execution failed")
		return SandboxResult{RuntimeError: sandboxUnavailableMsg, StatusCode: -1}
	}

	var result SandboxResult
	if resp.Status != nil {
		result.StatusCode = resp.Status.ID
	}
	result.Stdout = deref(resp.Stdout)
	result.Stderr = deref(resp.Stderr)
	switch {
	case result.StatusCode == 6:
		result.CompileError = deref(resp.CompileOutput)
		if result.CompileError == "" {
			result.CompileError = "Compilation failed"
		}
	case result.StatusCode >= 7 && result.StatusCode <= 12:
		result.RuntimeError = result.Stderr
		if result.RuntimeError == "" && resp.Status != nil {
			result.RuntimeError = resp.Status.Description
		}
	}
	if resp.Time != nil {
		if secs, perr := strconv.ParseFloat(*resp.Time, 64); perr == nil {
			result.ExecutionTimeMs = int(secs * 1000)
		}
	}
	if resp.Memory != nil {
		result.MemoryUsedMb = *resp.Memory / 1024
	}
	return result
}

func (s *judge0SandboxService) submit(ctx context.Context, opts SandboxRunOptions) (*judge0Response, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(opts.TimeoutMs)*time.Millisecond+5*time.Second)
	defer cancel()

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("sandbox rate limiter: %w", err)
	}

	body, err := json.Marshal(judge0Submission{
		LanguageID:   judge0LanguageID(opts.Language),
		SourceCode:   opts.Code,
		Stdin:        opts.Stdin,
		CPUTimeLimit: opts.TimeoutMs / 1000,
		MemoryLimit:  opts.MemoryLimitMb * 1024,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode submission: %w", err)
	}

	url := s.baseURL + "/submissions?base64_encoded=false&wait=true"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build sandbox request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Auth-Token", s.apiKey)

	httpResp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sandbox request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		return nil, fmt.Errorf("sandbox returned status %d: %s", httpResp.StatusCode, string(snippet))
	}

	var out judge0Response
	if err := json.NewDecoder(httpResp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode sandbox response: %w", err)
	}
	return &out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
