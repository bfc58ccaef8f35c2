package translator

import (
	"context"
	"encoding/json"
	"fmt"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicService submits requests through the Anthropic Message Batches API.
type AnthropicService struct {
	client anthropic.Client
}

func NewAnthropicService(cfg ServiceConfig) *AnthropicService {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	return &AnthropicService{client: anthropic.NewClient(opts...)}
}

func (s *AnthropicService) Name() string {
	return "anthropic"
}

func (s *AnthropicService) Submit(ctx context.Context, req Request) (string, error) {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(req.User))
	for _, text := range req.User {
		blocks = append(blocks, anthropic.NewTextBlock(text))
	}
	messages := []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)}

	params := anthropic.MessageBatchNewParamsRequestParams{
		Model:       anthropic.Model(req.Model),
		MaxTokens:   int64(req.MaxTokens),
		Temperature: anthropic.Float(req.Temperature),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	if req.ThinkingBudget > 0 {
		if req.Prefill != "" {
			return "", fmt.Errorf("prefill cannot be combined with extended thinking")
		}
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(int64(req.ThinkingBudget))
	} else {
		params.Thinking = anthropic.ThinkingConfigParamUnion{OfDisabled: &anthropic.ThinkingConfigDisabledParam{}}
		if req.Prefill != "" {
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(req.Prefill)))
		}
	}
	params.Messages = messages

	batch, err := s.client.Messages.Batches.New(ctx, anthropic.MessageBatchNewParams{
		Requests: []anthropic.MessageBatchNewParamsRequest{{
			CustomID: req.CustomID,
			Params:   params,
		}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create message batch: %w", err)
	}
	return batch.ID, nil
}

func (s *AnthropicService) Status(ctx context.Context, jobID string) (JobStatus, error) {
	batch, err := s.client.Messages.Batches.Get(ctx, jobID)
	if err != nil {
		return "", fmt.Errorf("failed to retrieve message batch %s: %w", jobID, err)
	}
	return JobStatus(batch.ProcessingStatus), nil
}

func (s *AnthropicService) Results(ctx context.Context, jobID string) ([]Result, error) {
	stream := s.client.Messages.Batches.ResultsStreaming(ctx, jobID)
	defer stream.Close()

	var results []Result
	for stream.Next() {
		item := stream.Current()
		res := Result{
			CustomID: item.CustomID,
			Outcome:  Outcome(item.Result.Type),
			Raw:      json.RawMessage(item.RawJSON()),
		}
		switch res.Outcome {
		case OutcomeSucceeded:
			res.Message = convertAnthropicMessage(item.Result.Message)
			res.Raw = json.RawMessage(item.Result.Message.RawJSON())
		case OutcomeErrored:
			res.Error = item.Result.RawJSON()
		}
		results = append(results, res)
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("failed to read results of message batch %s: %w", jobID, err)
	}
	return results, nil
}

func convertAnthropicMessage(msg anthropic.Message) *Message {
	out := &Message{StopReason: StopReason(msg.StopReason)}
	for _, b := range msg.Content {
		switch BlockType(b.Type) {
		case BlockText:
			out.Content = append(out.Content, Block{Type: BlockText, Text: b.Text})
		case BlockThinking:
			out.Content = append(out.Content, Block{Type: BlockThinking, Text: b.Thinking})
		default:
			out.Content = append(out.Content, Block{Type: BlockType(b.Type)})
		}
	}
	return out
}
