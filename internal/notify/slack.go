package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sentinelhq/domainwatch/internal/model"
)

// SlackChannel posts messages to Slack incoming webhooks
type SlackChannel struct {
	httpClient *http.Client
}

// NewSlackChannel creates a Slack channel with the given delivery timeout
func NewSlackChannel(timeout time.Duration) *SlackChannel {
	return &SlackChannel{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Type implements Channel
func (c *SlackChannel) Type() model.ChannelType {
	return model.ChannelSlack
}

type slackPayload struct {
	Text string `json:"text"`
}

// Send posts the message to the Slack webhook in config.Target
func (c *SlackChannel) Send(ctx context.Context, config model.ChannelConfig, msg Message) error {
	body, err := json.Marshal(slackPayload{Text: "*" + msg.Title + "*\n" + msg.Text})
	if err != nil {
		return fmt.Errorf("failed to marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, config.Target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("slack returned status %d", resp.StatusCode)
	}
	return nil
}
