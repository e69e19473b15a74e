package provider

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/lensworks/lumen/internal/config"
)

const defaultCaptionPrompt = "Describe this image in one concise sentence. Mention the main subject and setting. Do not speculate."

// errEmptyEmbedding indicates the API returned no embedding data. This is
// retryable because routing providers can return HTTP 200 with an empty body
// under transient load.
var errEmptyEmbedding = errors.New("empty embedding response")

// OpenAIProvider implements Embedder and Captioner against an
// OpenAI-compatible endpoint. Embeddings are requested with the image encoded
// as a base64 data URL, which CLIP-style serving stacks accept as input.
type OpenAIProvider struct {
	client        *openai.Client
	embedModel    string
	captionModel  string
	maxRetries    int
	initialDelay  time.Duration
	backoffFactor float64
}

// NewOpenAIProvider creates a provider from the embedding and caption
// endpoint configurations. Both endpoints share retry behaviour taken from
// the embedding configuration.
func NewOpenAIProvider(embed, caption config.EndpointConfig) *OpenAIProvider {
	clientCfg := openai.DefaultConfig(embed.APIKey())
	if embed.BaseURL() != "" {
		clientCfg.BaseURL = embed.BaseURL()
	}
	clientCfg.HTTPClient = &http.Client{Timeout: embed.Timeout()}

	return &OpenAIProvider{
		client:        openai.NewClientWithConfig(clientCfg),
		embedModel:    embed.Model(),
		captionModel:  caption.Model(),
		maxRetries:    embed.MaxRetries(),
		initialDelay:  embed.InitialDelay(),
		backoffFactor: embed.BackoffFactor(),
	}
}

// SupportsCaptions reports whether a caption model is configured.
func (p *OpenAIProvider) SupportsCaptions() bool { return p.captionModel != "" }

// Embed generates an embedding vector for the image bytes.
func (p *OpenAIProvider) Embed(ctx context.Context, imageData []byte) ([]float64, error) {
	if p.embedModel == "" {
		return nil, ErrNotConfigured
	}

	req := openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(p.embedModel),
		Input: []string{imageDataURL(imageData)},
	}

	var resp openai.EmbeddingResponse
	err := p.withRetry(ctx, func() error {
		var callErr error
		resp, callErr = p.client.CreateEmbeddings(ctx, req)
		if callErr != nil {
			return callErr
		}
		if len(resp.Data) == 0 {
			return errEmptyEmbedding
		}
		return nil
	})
	if err != nil {
		return nil, p.wrapError("embedding", err)
	}

	raw := resp.Data[0].Embedding
	vector := make([]float64, len(raw))
	for i, v := range raw {
		vector[i] = float64(v)
	}
	return vector, nil
}

// Caption generates a one-sentence caption for the image bytes.
func (p *OpenAIProvider) Caption(ctx context.Context, imageData []byte) (string, error) {
	if p.captionModel == "" {
		return "", ErrNotConfigured
	}

	req := openai.ChatCompletionRequest{
		Model:     p.captionModel,
		MaxTokens: 120,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: defaultCaptionPrompt,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    imageDataURL(imageData),
							Detail: openai.ImageURLDetailLow,
						},
					},
				},
			},
		},
	}

	var resp openai.ChatCompletionResponse
	err := p.withRetry(ctx, func() error {
		var callErr error
		resp, callErr = p.client.CreateChatCompletion(ctx, req)
		return callErr
	})
	if err != nil {
		return "", p.wrapError("caption", err)
	}
	if len(resp.Choices) == 0 {
		return "", NewProviderError("caption", 0, "no choices in response", nil)
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// withRetry executes the function with exponential backoff retry.
func (p *OpenAIProvider) withRetry(ctx context.Context, fn func() error) error {
	delay := p.initialDelay
	var lastErr error

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if !p.isRetryable(lastErr) {
			return lastErr
		}

		if attempt < p.maxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay = time.Duration(float64(delay) * p.backoffFactor)
			}
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// isRetryable determines if an error should be retried.
func (p *OpenAIProvider) isRetryable(err error) bool {
	if errors.Is(err, errEmptyEmbedding) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		// Network errors are retryable.
		return true
	}

	return false
}

// wrapError wraps an OpenAI error into a ProviderError.
func (p *OpenAIProvider) wrapError(operation string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return NewProviderError(operation, apiErr.HTTPStatusCode, apiErr.Message, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return NewProviderError(operation, reqErr.HTTPStatusCode, reqErr.Error(), err)
	}

	return NewProviderError(operation, 0, err.Error(), err)
}

// imageDataURL encodes image bytes as a base64 data URL. The generic media
// type is accepted by the serving stacks we target regardless of the actual
// image format.
func imageDataURL(data []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data)
}

// Ensure OpenAIProvider implements the interfaces.
var (
	_ Embedder  = (*OpenAIProvider)(nil)
	_ Captioner = (*OpenAIProvider)(nil)
)
