// Package chat implements the Chat Client: test/send operations against a
// Slack-compatible chat platform.
package chat

import (
	"context"
	"time"

	"github.com/incident-console/backend/pkg/apierrors"
	"github.com/slack-go/slack"
)

const defaultTimeout = 10 * time.Second

// Identity is the result of a successful auth test.
type Identity struct {
	Team string `json:"team"`
	User string `json:"user"`
	URL  string `json:"url"`
}

// Receipt is the result of a successful post.
type Receipt struct {
	Channel   string `json:"channel"`
	Timestamp string `json:"timestamp"`
}

// Client talks to the chat platform on behalf of the console.
type Client struct{}

// New constructs a chat Client.
func New() *Client { return &Client{} }

// Test verifies token against the platform's auth-test endpoint.
func (c *Client) Test(ctx context.Context, token string) (Identity, error) {
	api := slack.New(token)
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	resp, err := api.AuthTestContext(ctx)
	if err != nil {
		return Identity{}, apierrors.Upstream("chat", err)
	}
	return Identity{Team: resp.Team, User: resp.User, URL: resp.URL}, nil
}

// Post delivers text to channel using token.
func (c *Client) Post(ctx context.Context, token, channel, text string) (Receipt, error) {
	api := slack.New(token)
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	respChannel, timestamp, err := api.PostMessageContext(ctx, channel, slack.MsgOptionText(text, false))
	if err != nil {
		return Receipt{}, apierrors.Upstream("chat", err)
	}
	return Receipt{Channel: respChannel, Timestamp: timestamp}, nil
}
