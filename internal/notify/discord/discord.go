// Package discord implements the notify Notifier for Discord.
package discord

import (
	"context"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/medihelp/carewire/internal/notify"
)

// severityColors maps notification severities to embed colors.
var severityColors = map[notify.Severity]int{
	notify.SeverityInfo:    0x36a64f,
	notify.SeverityWarning: 0xe8a317,
}

// session abstracts the discordgo.Session methods we use, enabling test
// mocks.
type session interface {
	Open() error
	Close() error
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Adapter implements notify.Notifier for Discord.
type Adapter struct {
	session   session
	channelID string

	mu        sync.Mutex
	connected bool
	closed    bool
}

// AdapterOpts holds parameters for creating a Discord Adapter.
type AdapterOpts struct {
	Token     string // bot token
	ChannelID string // channel to post to
}

// NewAdapter creates a Discord adapter. It validates opts but does not
// open the gateway connection; call Connect before Send.
func NewAdapter(opts AdapterOpts) (*Adapter, error) {
	if opts.Token == "" {
		return nil, fmt.Errorf("discord: token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("discord: channel ID is required")
	}
	s, err := discordgo.New("Bot " + opts.Token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}
	return &Adapter{session: s, channelID: opts.ChannelID}, nil
}

// Connect opens the gateway connection.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return fmt.Errorf("discord: adapter is closed")
	}
	if err := a.session.Open(); err != nil {
		return fmt.Errorf("discord: open session: %w", err)
	}
	a.connected = true
	return nil
}

// Send posts the notification as an embed to the configured channel.
func (a *Adapter) Send(ctx context.Context, n notify.Notification) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return fmt.Errorf("discord: adapter is closed")
	}
	if !a.connected {
		a.mu.Unlock()
		return fmt.Errorf("discord: not connected")
	}
	a.mu.Unlock()

	embed := &discordgo.MessageEmbed{
		Title:       n.Title,
		Description: n.Body,
		Color:       severityColors[n.Severity],
	}
	if _, err := a.session.ChannelMessageSendEmbed(a.channelID, embed, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: send embed: %w", err)
	}
	return nil
}

// Close shuts the gateway connection down.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	if !a.connected {
		return nil
	}
	a.connected = false
	if err := a.session.Close(); err != nil {
		return fmt.Errorf("discord: close session: %w", err)
	}
	return nil
}
