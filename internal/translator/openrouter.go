package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/valpere/linetran/internal/postprocess"
)

const defaultOpenRouterURL = "https://openrouter.ai/api/v1"

// OpenRouterService runs each request synchronously against the OpenRouter
// chat completions endpoint and exposes the answer as an already-ended job.
type OpenRouterService struct {
	apiKey  string
	baseURL string
	client  *http.Client

	mu   sync.Mutex
	jobs map[string]Result
}

func NewOpenRouterService(cfg ServiceConfig) *OpenRouterService {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenRouterURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &OpenRouterService{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		jobs:    make(map[string]Result),
	}
}

func (s *OpenRouterService) Name() string {
	return "openrouter"
}

type openRouterMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openRouterRequest struct {
	Model       string              `json:"model"`
	Messages    []openRouterMessage `json:"messages"`
	MaxTokens   int                 `json:"max_tokens"`
	Temperature float64             `json:"temperature"`
	Reasoning   *openRouterThinking `json:"reasoning,omitempty"`
}

type openRouterThinking struct {
	MaxTokens int `json:"max_tokens"`
}

type openRouterResponse struct {
	Choices []struct {
		FinishReason string `json:"finish_reason"`
		Message      struct {
			Content   string `json:"content"`
			Reasoning string `json:"reasoning"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (s *OpenRouterService) Submit(ctx context.Context, req Request) (string, error) {
	if s.apiKey == "" {
		return "", fmt.Errorf("OpenRouter API key required")
	}

	body := openRouterRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.System != "" {
		body.Messages = append(body.Messages, openRouterMessage{Role: "system", Content: req.System})
	}
	body.Messages = append(body.Messages, openRouterMessage{Role: "user", Content: strings.Join(req.User, "\n\n")})
	if req.ThinkingBudget > 0 {
		body.Reasoning = &openRouterThinking{MaxTokens: req.ThinkingBudget}
	} else if req.Prefill != "" {
		body.Messages = append(body.Messages, openRouterMessage{Role: "assistant", Content: req.Prefill})
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)
	httpReq.Header.Set("X-Title", "linetran")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	res := Result{CustomID: req.CustomID, Raw: json.RawMessage(raw)}
	if resp.StatusCode != http.StatusOK {
		res.Outcome = OutcomeErrored
		res.Error = fmt.Sprintf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	} else {
		msg, err := decodeOpenRouterMessage(raw)
		if err != nil {
			res.Outcome = OutcomeErrored
			res.Error = err.Error()
		} else {
			res.Outcome = OutcomeSucceeded
			res.Message = msg
		}
	}

	jobID := "or_" + uuid.NewString()
	s.mu.Lock()
	s.jobs[jobID] = res
	s.mu.Unlock()
	return jobID, nil
}

func decodeOpenRouterMessage(raw []byte) (*Message, error) {
	var orResp openRouterResponse
	if err := json.Unmarshal(raw, &orResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if orResp.Error != nil {
		return nil, fmt.Errorf("API error: %s", orResp.Error.Message)
	}
	if len(orResp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from API")
	}

	choice := orResp.Choices[0]
	msg := &Message{StopReason: mapFinishReason(choice.FinishReason)}

	text, inline, found := postprocess.SplitThinking(choice.Message.Content)
	reasoning := strings.TrimSpace(choice.Message.Reasoning)
	if found && reasoning == "" {
		reasoning = inline
	}
	if reasoning != "" || found {
		msg.Content = append(msg.Content, Block{Type: BlockThinking, Text: reasoning})
	}
	if text != "" {
		msg.Content = append(msg.Content, Block{Type: BlockText, Text: text})
	}
	return msg, nil
}

func mapFinishReason(reason string) StopReason {
	switch reason {
	case "stop", "end_turn":
		return StopEndTurn
	case "length", "max_tokens":
		return StopMaxTokens
	case "content_filter", "refusal":
		return StopRefusal
	default:
		return StopReason(reason)
	}
}

func (s *OpenRouterService) Status(ctx context.Context, jobID string) (JobStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[jobID]; !ok {
		return "", fmt.Errorf("unknown job %s", jobID)
	}
	return JobEnded, nil
}

// Results hands out the stored result once; the job is forgotten afterwards.
func (s *OpenRouterService) Results(ctx context.Context, jobID string) ([]Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("unknown job %s", jobID)
	}
	delete(s.jobs, jobID)
	return []Result{res}, nil
}
