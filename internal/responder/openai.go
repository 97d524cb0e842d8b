package responder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// OpenAI implements domain.Responder against OpenAI-compatible chat
// completion APIs. One request per call, no session state held in this
// process.
type OpenAI struct {
	apiKey       string
	apiBase      string
	model        string
	systemPrompt string
	client       *http.Client
	logger       *slog.Logger
}

type OpenAIConfig struct {
	APIKey         string
	APIBase        string
	Model          string
	SystemPrompt   string
	TimeoutSeconds int // overall HTTP timeout per completion call
	Logger         *slog.Logger
}

func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	if cfg.APIBase == "" {
		cfg.APIBase = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	return &OpenAI{
		apiKey:       cfg.APIKey,
		apiBase:      cfg.APIBase,
		model:        cfg.Model,
		systemPrompt: cfg.SystemPrompt,
		client:       newHTTPClient(cfg.TimeoutSeconds),
		logger:       cfg.Logger,
	}
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", o.apiBase+"/models", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("responder not reachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("responder: invalid API key")
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("responder returned %d", resp.StatusCode)
	}
	return nil
}

type oaiRequest struct {
	Model    string       `json:"model"`
	Messages []oaiMessage `json:"messages"`
	Stream   bool         `json:"stream"`
}

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiResponse struct {
	Choices []oaiChoice `json:"choices"`
}

type oaiChoice struct {
	Message      oaiMessage `json:"message"`
	FinishReason string     `json:"finish_reason"`
}

// Complete sends text as a single user turn and returns the model's reply.
// convID is logged for correlation only; no per-conversation state is kept
// in this process.
func (o *OpenAI) Complete(ctx context.Context, convID string, text string) (string, error) {
	msgs := make([]oaiMessage, 0, 2)
	if o.systemPrompt != "" {
		msgs = append(msgs, oaiMessage{Role: "system", Content: o.systemPrompt})
	}
	msgs = append(msgs, oaiMessage{Role: "user", Content: text})

	jsonBody, err := json.Marshal(oaiRequest{
		Model:    o.model,
		Messages: msgs,
		Stream:   false,
	})
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}

	buildReq := func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, "POST", o.apiBase+"/chat/completions", bytes.NewReader(jsonBody))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
		return req, nil
	}

	resp, err := doWithRetry(ctx, o.client, buildReq, o.logger)
	if err != nil {
		return "", fmt.Errorf("responder request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("responder %d: %s", resp.StatusCode, string(respBody))
	}

	var oaiResp oaiResponse
	if err := json.NewDecoder(resp.Body).Decode(&oaiResp); err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	if len(oaiResp.Choices) == 0 {
		return "", fmt.Errorf("responder returned no choices")
	}

	o.logger.Debug("completion received",
		"conversation", convID,
		"finish_reason", oaiResp.Choices[0].FinishReason,
	)
	return oaiResp.Choices[0].Message.Content, nil
}
