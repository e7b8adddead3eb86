// Package slack implements the notify Notifier for Slack.
package slack

import (
	"context"
	"fmt"
	"sync"
	"time"

	slackapi "github.com/slack-go/slack"

	"github.com/medihelp/carewire/internal/notify"
)

const (
	// maxRetries is the max number of retries for rate-limited API calls.
	maxRetries = 3
)

// severityColors maps notification severities to attachment colors.
var severityColors = map[notify.Severity]string{
	notify.SeverityInfo:    "#36a64f",
	notify.SeverityWarning: "#e8a317",
}

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	AuthTestContext(ctx context.Context) (*slackapi.AuthTestResponse, error)
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Adapter implements notify.Notifier for Slack.
type Adapter struct {
	client    slackClient
	channelID string

	mu        sync.Mutex
	connected bool
	closed    bool
}

// AdapterOpts holds parameters for creating a Slack Adapter.
type AdapterOpts struct {
	BotToken  string // xoxb-... Slack bot token
	ChannelID string // channel to post to
}

// NewAdapter creates a Slack adapter. It validates opts but does not
// connect; call Connect before Send.
func NewAdapter(opts AdapterOpts) (*Adapter, error) {
	if opts.BotToken == "" {
		return nil, fmt.Errorf("slack: bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("slack: channel ID is required")
	}
	return &Adapter{
		client:    slackapi.New(opts.BotToken),
		channelID: opts.ChannelID,
	}, nil
}

// Connect verifies the token against the Slack API.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return fmt.Errorf("slack: adapter is closed")
	}
	if _, err := a.client.AuthTestContext(ctx); err != nil {
		return fmt.Errorf("slack: auth test: %w", err)
	}
	a.connected = true
	return nil
}

// Send posts the notification to the configured channel, retrying on
// rate limits.
func (a *Adapter) Send(ctx context.Context, n notify.Notification) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return fmt.Errorf("slack: adapter is closed")
	}
	if !a.connected {
		a.mu.Unlock()
		return fmt.Errorf("slack: not connected")
	}
	a.mu.Unlock()

	attachment := slackapi.Attachment{
		Title: n.Title,
		Text:  n.Body,
		Color: severityColors[n.Severity],
	}

	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		_, _, err = a.client.PostMessageContext(ctx, a.channelID,
			slackapi.MsgOptionAttachments(attachment))
		if err == nil {
			return nil
		}
		rateErr, ok := err.(*slackapi.RateLimitedError)
		if !ok {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(rateErr.RetryAfter):
		}
	}
	return fmt.Errorf("slack: post message: %w", err)
}

// Close marks the adapter closed. Slack's web API holds no persistent
// connection, so there is nothing to tear down.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	a.connected = false
	return nil
}
