package reasoner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"foreman/internal/state"
)

// GeminiConfig configures the Gemini-backed client.
type GeminiConfig struct {
	APIKey          string
	BaseURL         string
	Model           string
	Timeout         time.Duration
	MaxOutputTokens int
}

// DefaultGeminiConfig returns sensible defaults for the given key.
func DefaultGeminiConfig(apiKey string) GeminiConfig {
	return GeminiConfig{
		APIKey:          apiKey,
		BaseURL:         "https://generativelanguage.googleapis.com/v1beta",
		Model:           "gemini-2.5-flash",
		Timeout:         5 * time.Minute,
		MaxOutputTokens: 16384,
	}
}

// GeminiClient implements Client against the Gemini generateContent API.
type GeminiClient struct {
	apiKey          string
	baseURL         string
	model           string
	maxOutputTokens int
	httpClient      *http.Client
	log             *zap.Logger
}

// NewGeminiClient creates a client from config.
func NewGeminiClient(cfg GeminiConfig, log *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key not configured")
	}
	def := DefaultGeminiConfig(cfg.APIKey)
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = def.MaxOutputTokens
	}

	return &GeminiClient{
		apiKey:          cfg.APIKey,
		baseURL:         cfg.BaseURL,
		model:           cfg.Model,
		maxOutputTokens: cfg.MaxOutputTokens,
		httpClient:      &http.Client{Timeout: cfg.Timeout},
		log:             log,
	}, nil
}

// Wire types for the generateContent endpoint.

type geminiPart struct {
	Text             string                  `json:"text,omitempty"`
	FunctionCall     *geminiFunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *geminiFunctionResponse `json:"functionResponse,omitempty"`
}

type geminiFunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

type geminiFunctionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature      float64        `json:"temperature"`
	MaxOutputTokens  int            `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string         `json:"responseMimeType,omitempty"`
	ResponseSchema   map[string]any `json:"responseSchema,omitempty"`
}

type geminiFunctionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type geminiTool struct {
	FunctionDeclarations []geminiFunctionDeclaration `json:"functionDeclarations,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent        `json:"contents"`
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
	Tools             []geminiTool           `json:"tools,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends a plain system+user exchange.
func (c *GeminiClient) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.generate(ctx, system, []geminiContent{userContent(user)}, nil, nil)
	if err != nil {
		return "", err
	}
	return candidateText(resp), nil
}

// CompleteStructured constrains the response to schema and decodes into out.
func (c *GeminiClient) CompleteStructured(ctx context.Context, system, user string, schema map[string]any, out any) error {
	resp, err := c.generate(ctx, system, []geminiContent{userContent(user)}, schema, nil)
	if err != nil {
		return err
	}
	text := candidateText(resp)
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("structured response did not match schema: %w (body: %.200s)", err, text)
	}
	return nil
}

// CompleteWithTools sends the transcript with a bound toolset.
func (c *GeminiClient) CompleteWithTools(ctx context.Context, system string, msgs []state.Message, tools []ToolDefinition) (state.Message, error) {
	contents := transcriptContents(msgs)

	var gt []geminiTool
	if len(tools) > 0 {
		decls := make([]geminiFunctionDeclaration, 0, len(tools))
		for _, t := range tools {
			decls = append(decls, geminiFunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			})
		}
		gt = []geminiTool{{FunctionDeclarations: decls}}
	}

	resp, err := c.generate(ctx, system, contents, nil, gt)
	if err != nil {
		return state.Message{}, err
	}

	msg := state.Message{Role: state.RoleAI}
	if len(resp.Candidates) == 0 {
		return msg, fmt.Errorf("no completion returned")
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			msg.Content += part.Text
		}
		if part.FunctionCall != nil {
			msg.ToolCalls = append(msg.ToolCalls, state.ToolCall{
				ID:   fmt.Sprintf("call_%d", len(msg.ToolCalls)),
				Name: part.FunctionCall.Name,
				Args: part.FunctionCall.Args,
			})
		}
	}
	msg.Content = strings.TrimSpace(msg.Content)
	return msg, nil
}

// generate performs the HTTP call with retries on transient failures.
func (c *GeminiClient) generate(ctx context.Context, system string, contents []geminiContent, schema map[string]any, tools []geminiTool) (*geminiResponse, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	reqBody := geminiRequest{
		Contents: contents,
		GenerationConfig: geminiGenerationConfig{
			Temperature:     1.0,
			MaxOutputTokens: c.maxOutputTokens,
		},
		Tools: tools,
	}
	if system != "" {
		reqBody.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: system}}}
	}
	if schema != nil {
		reqBody.GenerationConfig.ResponseMimeType = "application/json"
		reqBody.GenerationConfig.ResponseSchema = schema
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)

	const maxRetries = 3
	var lastErr error
	start := time.Now()

	for i := 0; i <= maxRetries; i++ {
		if i > 0 {
			select {
			case <-time.After(time.Duration(1<<uint(i-1)) * time.Second):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		data, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			// Retry with backoff; surfaces as a bad-request condition only
			// after the retry budget is spent.
			lastErr = &BadRequestError{StatusCode: resp.StatusCode, Body: truncateBody(body)}
			continue
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			return nil, &BadRequestError{StatusCode: resp.StatusCode, Body: truncateBody(body)}
		case resp.StatusCode != http.StatusOK:
			lastErr = fmt.Errorf("API request failed with status %d: %.200s", resp.StatusCode, string(body))
			continue
		}

		var gr geminiResponse
		if err := json.Unmarshal(body, &gr); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
		if gr.Error != nil {
			return nil, fmt.Errorf("API error %d: %s", gr.Error.Code, gr.Error.Message)
		}

		c.log.Debug("gemini call completed",
			zap.String("model", c.model),
			zap.Duration("elapsed", time.Since(start)),
			zap.Int("attempt", i+1))
		return &gr, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func userContent(text string) geminiContent {
	return geminiContent{Role: "user", Parts: []geminiPart{{Text: text}}}
}

// transcriptContents maps the run transcript onto Gemini roles: human turns
// become user content, ai turns become model content (re-emitting function
// calls), tool turns become user functionResponse parts.
func transcriptContents(msgs []state.Message) []geminiContent {
	contents := make([]geminiContent, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case state.RoleHuman:
			contents = append(contents, userContent(m.Content))
		case state.RoleAI:
			parts := []geminiPart{}
			if m.Content != "" {
				parts = append(parts, geminiPart{Text: m.Content})
			}
			for _, call := range m.ToolCalls {
				parts = append(parts, geminiPart{FunctionCall: &geminiFunctionCall{
					Name: call.Name,
					Args: call.Args,
				}})
			}
			if len(parts) == 0 {
				continue
			}
			contents = append(contents, geminiContent{Role: "model", Parts: parts})
		case state.RoleTool:
			contents = append(contents, geminiContent{
				Role: "user",
				Parts: []geminiPart{{FunctionResponse: &geminiFunctionResponse{
					Name:     m.Name,
					Response: map[string]any{"output": m.Content},
				}}},
			})
		}
	}
	return contents
}

func candidateText(resp *geminiResponse) string {
	if len(resp.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	return strings.TrimSpace(b.String())
}

func truncateBody(body []byte) string {
	s := string(body)
	if len(s) > 500 {
		s = s[:500]
	}
	return s
}

var _ Client = (*GeminiClient)(nil)
