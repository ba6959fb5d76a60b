// Package notify delivers alert and run-completion messages over the
// configured channel transports (webhook, Slack, email). All channel
// types are treated uniformly at this boundary.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sentinelhq/domainwatch/internal/model"
)

// Message is one outbound notification
type Message struct {
	Title    string
	Text     string
	Domain   string
	Severity model.IssueSeverity
}

// Channel delivers a message to one transport target
type Channel interface {
	Type() model.ChannelType
	Send(ctx context.Context, config model.ChannelConfig, msg Message) error
}

// SendResult is the per-channel outcome of a fan-out
type SendResult struct {
	Config model.ChannelConfig
	Err    error
}

// Fanout dispatches one message to a set of channel configurations.
// One channel's failure never prevents the others from being tried.
type Fanout struct {
	channels map[model.ChannelType]Channel
}

// NewFanout creates a fan-out over the given channel implementations
func NewFanout(channels ...Channel) *Fanout {
	byType := make(map[model.ChannelType]Channel, len(channels))
	for _, ch := range channels {
		byType[ch.Type()] = ch
	}
	return &Fanout{channels: byType}
}

// Send delivers the message to every config, returning per-channel results
func (f *Fanout) Send(ctx context.Context, configs []model.ChannelConfig, msg Message) []SendResult {
	results := make([]SendResult, 0, len(configs))

	for _, config := range configs {
		ch, ok := f.channels[config.Type]
		if !ok {
			results = append(results, SendResult{
				Config: config,
				Err:    fmt.Errorf("no channel registered for type %s", config.Type),
			})
			continue
		}

		err := ch.Send(ctx, config, msg)
		if err != nil {
			slog.Warn("Notification delivery failed",
				"channel", config.Type,
				"target", config.Target,
				"error", err,
			)
		}
		results = append(results, SendResult{Config: config, Err: err})
	}

	return results
}
