package slack

import (
	"context"
	"fmt"
	"net/http"
	"time"

	slackapi "github.com/slack-go/slack"
	"golang.org/x/time/rate"

	"github.com/relayops/dispatch-api/internal/model"
	"github.com/relayops/dispatch-api/pkg/circuitbreaker"
	"github.com/relayops/dispatch-api/pkg/logger"
)

// Chat is the delivery collaborator boundary. The dispatcher and recipient
// resolver depend on this interface, not on the Slack SDK.
type Chat interface {
	PostMessage(ctx context.Context, token, channel, text string, blocks model.BlockList) (string, error)
	LookupUserByEmail(ctx context.Context, token, email string) (string, error)
}

type Config struct {
	APITimeout time.Duration
	RatePerSec float64
	RateBurst  int
}

type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	cb         *circuitbreaker.CircuitBreaker
	logger     *logger.Logger
}

func NewClient(cfg Config, logger *logger.Logger) *Client {
	if cfg.APITimeout <= 0 {
		cfg.APITimeout = 15 * time.Second
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 5
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.APITimeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RateBurst),
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "slack-api",
			MaxFailures: 10,
			Interval:    30 * time.Second,
			Timeout:     15 * time.Second,
		}),
		logger: logger,
	}
}

func (c *Client) api(token string) *slackapi.Client {
	return slackapi.New(token, slackapi.OptionHTTPClient(c.httpClient))
}

// PostMessage delivers one message to one channel and returns the provider
// timestamp. Exactly one network call; retries belong to the caller's policy.
func (c *Client) PostMessage(ctx context.Context, token, channel, text string, blocks model.BlockList) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	opts := []slackapi.MsgOption{slackapi.MsgOptionText(text, false)}
	if len(blocks) > 0 {
		opts = append(opts, slackapi.MsgOptionBlocks(toSlackBlocks(blocks)...))
	}

	var timestamp string
	err := c.cb.Execute(func() error {
		_, ts, err := c.api(token).PostMessageContext(ctx, channel, opts...)
		if err != nil {
			return err
		}
		timestamp = ts
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("slack post message: %w", err)
	}
	return timestamp, nil
}

// LookupUserByEmail resolves an email to a Slack user ID through the
// workspace directory.
func (c *Client) LookupUserByEmail(ctx context.Context, token, email string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	var userID string
	err := c.cb.Execute(func() error {
		user, err := c.api(token).GetUserByEmailContext(ctx, email)
		if err != nil {
			return err
		}
		userID = user.ID
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("slack lookup by email: %w", err)
	}
	return userID, nil
}

func toSlackBlocks(blocks model.BlockList) []slackapi.Block {
	out := make([]slackapi.Block, 0, len(blocks))
	for _, b := range blocks {
		switch b.Type {
		case model.BlockTypeSection:
			out = append(out, slackapi.NewSectionBlock(
				slackapi.NewTextBlockObject(slackapi.MarkdownType, b.Text, false, false),
				sectionFields(b.Fields), nil,
			))
		case model.BlockTypeDivider:
			out = append(out, slackapi.NewDividerBlock())
		case model.BlockTypeHeader:
			out = append(out, slackapi.NewHeaderBlock(
				slackapi.NewTextBlockObject(slackapi.PlainTextType, b.Text, false, false),
			))
		case model.BlockTypeContext:
			elements := make([]slackapi.MixedElement, 0, 1)
			elements = append(elements,
				slackapi.NewTextBlockObject(slackapi.MarkdownType, b.Text, false, false))
			out = append(out, slackapi.NewContextBlock("", elements...))
		}
	}
	return out
}

func sectionFields(fields []string) []*slackapi.TextBlockObject {
	if len(fields) == 0 {
		return nil
	}
	out := make([]*slackapi.TextBlockObject, 0, len(fields))
	for _, f := range fields {
		out = append(out, slackapi.NewTextBlockObject(slackapi.MarkdownType, f, false, false))
	}
	return out
}
