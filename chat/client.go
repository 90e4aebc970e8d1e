package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/linelight/backend/engine"
	"github.com/linelight/backend/telemetry"
)

// TokenValidator checks an OAuth token against the Twitch id service and
// returns the login it belongs to. The IRC client authenticates as that
// login, so no separate bot username is configured.
type TokenValidator func(ctx context.Context, token string) (login string, err error)

// Client is the IRC transport behind the connection state machine. Start
// and Stop are called from the router goroutine; the IRC read loop runs in
// its own goroutine and reports back through dispatched events.
type Client struct {
	channels []string
	validate TokenValidator
	dispatch func(engine.Event)

	mu        sync.Mutex
	irc       *twitch.Client
	connected atomic.Bool
}

// NewClient builds a transport joining the given channels. dispatch hands
// events to the router and must not block indefinitely.
func NewClient(channels []string, validate TokenValidator, dispatch func(engine.Event)) *Client {
	return &Client{channels: channels, validate: validate, dispatch: dispatch}
}

// Start obtains a token, derives the bot login from it, and launches the
// IRC connection. It returns engine.ErrNoToken when the provider reports a
// dismissed prompt. Connection progress arrives as ChatConnecting,
// ChatConnected and ChatDisconnected events.
func (c *Client) Start(ctx context.Context, token func(context.Context) (string, bool, error)) error {
	tok, ok, err := token(ctx)
	if err != nil {
		return fmt.Errorf("obtain chat token: %w", err)
	}
	if !ok || tok == "" {
		return engine.ErrNoToken
	}
	raw := strings.TrimPrefix(tok, "oauth:")
	login, err := c.validate(ctx, raw)
	if err != nil {
		return fmt.Errorf("validate chat token: %w", err)
	}

	irc := twitch.NewClient(login, "oauth:"+raw)
	irc.OnConnect(func() {
		c.connected.Store(true)
		c.dispatch(engine.ChatConnected{})
	})
	irc.OnPrivateMessage(func(msg twitch.PrivateMessage) {
		ev, recognized := ParseMessage(msg.User.Name, isModerator(msg.User), msg.Message)
		if !recognized {
			return
		}
		telemetry.IncChatCommandsParsed()
		c.dispatch(ev)
	})
	irc.OnClearChatMessage(func(msg twitch.ClearChatMessage) {
		// CLEARCHAT with a target is a ban or timeout; either way the
		// user's highlights go. A chat-wide clear is ignored.
		if msg.TargetUsername == "" {
			return
		}
		c.dispatch(engine.ChatBan{User: msg.TargetUsername})
	})
	for _, ch := range c.channels {
		irc.Join(ch)
	}

	c.mu.Lock()
	c.irc = irc
	c.mu.Unlock()

	c.dispatch(engine.ChatConnecting{})
	go func() {
		err := irc.Connect()
		c.connected.Store(false)
		if err != nil && err != twitch.ErrClientDisconnected {
			slog.Error("twitch chat connection ended", slog.Any("err", err))
		}
		c.dispatch(engine.ChatDisconnected{})
	}()
	return nil
}

// Stop disconnects the IRC client if one is running.
func (c *Client) Stop() error {
	c.mu.Lock()
	irc := c.irc
	c.irc = nil
	c.mu.Unlock()
	if irc == nil {
		return nil
	}
	return irc.Disconnect()
}

// IsConnected reports whether the IRC session is up.
func (c *Client) IsConnected() bool { return c.connected.Load() }

func isModerator(u twitch.User) bool {
	return u.Badges["moderator"] > 0 || u.Badges["broadcaster"] > 0
}
