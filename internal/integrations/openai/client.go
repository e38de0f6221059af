// Package openai adapts github.com/sashabaranov/go-openai to the chat,
// tool-calling and embedding needs of the agent.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"analytics-agent/internal/domain"
)

const (
	DefaultBaseURL        = "https://api.openai.com/v1"
	DefaultChatModel      = "gpt-4o-mini"
	DefaultEmbeddingModel = string(goopenai.SmallEmbedding3)
)

// KeySource resolves a string field of a JSON secret.
// *paramstore.Client satisfies it.
type KeySource interface {
	GetJSONField(ctx context.Context, name, field string) (string, error)
}

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("openai: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client is safe for concurrent use. The API key is resolved once, on the
// first call, and reused for the lifetime of the process.
type Client struct {
	keys        KeySource
	paramPrefix string
	staticKey   string

	baseURL        string
	httpClient     *http.Client
	chatModel      string
	embeddingModel string
	limiter        *rate.Limiter

	once sync.Once
	api  *goopenai.Client
	err  error
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithAPIKey skips the parameter store lookup.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.staticKey = strings.TrimSpace(key)
	}
}

func WithChatModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.chatModel = model
		}
	}
}

func WithEmbeddingModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.embeddingModel = model
		}
	}
}

// WithRequestsPerMinute caps outgoing calls. Zero disables the limit.
func WithRequestsPerMinute(rpm int) Option {
	return func(c *Client) {
		if rpm <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), rpm)
	}
}

// NewClient builds a client whose key is read from
// <paramPrefix>/open-ai-token unless WithAPIKey is given.
func NewClient(keys KeySource, paramPrefix string, opts ...Option) (*Client, error) {
	c := &Client{
		keys:           keys,
		paramPrefix:    strings.TrimRight(strings.TrimSpace(paramPrefix), "/"),
		baseURL:        DefaultBaseURL,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		chatModel:      DefaultChatModel,
		embeddingModel: DefaultEmbeddingModel,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.staticKey != "" {
		return c, nil
	}
	if c.keys == nil {
		return nil, errors.New("openai: key source must not be nil without a static API key")
	}
	if c.paramPrefix == "" {
		return nil, errors.New("openai: parameter prefix must not be empty")
	}
	return c, nil
}

func (c *Client) tokenParameterName() string {
	return c.paramPrefix + "/open-ai-token"
}

// apiBase normalizes a base URL so that it ends in /v1.
func apiBase(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		return DefaultBaseURL
	}
	if strings.HasSuffix(base, "/v1") {
		return base
	}
	return base + "/v1"
}

func (c *Client) client(ctx context.Context) (*goopenai.Client, error) {
	c.once.Do(func() {
		key := c.staticKey
		if key == "" {
			var err error
			key, err = c.keys.GetJSONField(ctx, c.tokenParameterName(), "token")
			if err != nil {
				c.err = fmt.Errorf("openai: resolve api key: %w", err)
				return
			}
		}
		cfg := goopenai.DefaultConfig(key)
		cfg.BaseURL = apiBase(c.baseURL)
		if c.httpClient != nil {
			cfg.HTTPClient = c.httpClient
		}
		c.api = goopenai.NewClientWithConfig(cfg)
	})
	return c.api, c.err
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("openai: rate limit wait: %w", err)
	}
	return nil
}

// Complete runs one chat completion and returns the first choice.
func (c *Client) Complete(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error) {
	model := req.Model
	if model == "" {
		model = c.chatModel
	}
	if err := c.wait(ctx); err != nil {
		return domain.Completion{}, err
	}
	api, err := c.client(ctx)
	if err != nil {
		return domain.Completion{}, err
	}

	apiReq := goopenai.ChatCompletionRequest{
		Model:       model,
		Messages:    toMessages(req.Messages),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.JSONMode {
		apiReq.ResponseFormat = &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	if len(req.Tools) > 0 {
		apiReq.Tools = toTools(req.Tools)
		apiReq.ToolChoice = "auto"
	}

	resp, err := api.CreateChatCompletion(ctx, apiReq)
	if err != nil {
		return domain.Completion{}, c.wrap("chat completion", "/chat/completions", err)
	}
	if len(resp.Choices) == 0 {
		return domain.Completion{}, errors.New("openai: no choices in response")
	}

	msg := resp.Choices[0].Message
	out := domain.Completion{Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, domain.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out, nil
}

// Embed returns one vector per input, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	api, err := c.client(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := api.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Input: texts,
		Model: goopenai.EmbeddingModel(c.embeddingModel),
	})
	if err != nil {
		return nil, c.wrap("embeddings", "/embeddings", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai: %d embeddings returned for %d inputs", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) || out[d.Index] != nil {
			return nil, fmt.Errorf("openai: unexpected embedding index %d", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// EmbeddingModel names the model whose vectors Embed returns.
func (c *Client) EmbeddingModel() string { return c.embeddingModel }

func (c *Client) wrap(op, path string, err error) error {
	url := apiBase(c.baseURL) + path
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return &HTTPStatusError{StatusCode: apiErr.HTTPStatusCode, URL: url, Body: apiErr.Message}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return &HTTPStatusError{StatusCode: reqErr.HTTPStatusCode, URL: url, Body: string(reqErr.Body)}
	}
	return fmt.Errorf("openai: %s request failed: %w", op, err)
}

func toMessages(in []domain.ChatMessage) []goopenai.ChatCompletionMessage {
	out := make([]goopenai.ChatCompletionMessage, 0, len(in))
	for _, m := range in {
		msg := goopenai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, goopenai.ToolCall{
				ID:   tc.ID,
				Type: goopenai.ToolTypeFunction,
				Function: goopenai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		out = append(out, msg)
	}
	return out
}

func toTools(defs []domain.ToolDefinition) []goopenai.Tool {
	out := make([]goopenai.Tool, 0, len(defs))
	for _, d := range defs {
		out = append(out, goopenai.Tool{
			Type: goopenai.ToolTypeFunction,
			Function: &goopenai.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.Parameters,
			},
		})
	}
	return out
}
