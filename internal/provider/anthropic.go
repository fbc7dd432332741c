package provider

import (
	"context"
	"errors"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
)

const defaultMaxTokens = 1024

// AnthropicClient implements Invoker using the official anthropic-sdk-go.
type AnthropicClient struct {
	client sdk.Client
}

// NewAnthropic creates an Anthropic adapter with the given API key.
func NewAnthropic(apiKey string) *AnthropicClient {
	return &AnthropicClient{
		client: sdk.NewClient(
			option.WithAPIKey(apiKey),
		),
	}
}

func (c *AnthropicClient) Invoke(ctx context.Context, req Request) (*Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(req.Model),
		MaxTokens: maxTokens,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(req.User)),
		},
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature != nil {
		params.Temperature = sdk.Float(*req.Temperature)
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classify(err)
	}

	var content strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}
	if content.Len() == 0 {
		return nil, &Error{
			Provider: "anthropic",
			Kind:     ErrMalformed,
			Err:      eris.Errorf("no text content in response %s", msg.ID),
		}
	}

	return &Response{
		Content:      content.String(),
		Raw:          msg.RawJSON(),
		InputTokens:  msg.Usage.InputTokens,
		OutputTokens: msg.Usage.OutputTokens,
	}, nil
}

// classify maps SDK failures onto the provider error taxonomy.
func classify(err error) *Error {
	perr := &Error{Provider: "anthropic", Err: err}

	if errors.Is(err, context.DeadlineExceeded) {
		perr.Kind = ErrTimeout
		return perr
	}

	var apierr *sdk.Error
	if errors.As(err, &apierr) {
		switch {
		case apierr.StatusCode == 429:
			perr.Kind = ErrRateLimited
		case apierr.StatusCode == 401 || apierr.StatusCode == 403:
			perr.Kind = ErrAuth
		case apierr.StatusCode >= 500:
			perr.Kind = ErrNetwork
		default:
			perr.Kind = ErrMalformed
		}
		return perr
	}

	perr.Kind = ErrNetwork
	return perr
}
