package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/linelight/backend/highlight"
	"github.com/linelight/backend/telemetry"
)

// ErrNoToken is returned by a Transport when the token provider reports the
// user aborted the credential prompt. The state machine stays Disconnected
// and makes no connection attempt.
var ErrNoToken = errors.New("no chat credential supplied")

// ConnState is the chat connection status.
type ConnState int

const (
	Disconnected ConnState = iota
	Connecting
	Connected
)

func (s ConnState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	}
	return "disconnected"
}

// PurgeChoice is the answer to the disconnect-time prompt.
type PurgeChoice int

const (
	// ChoiceNone means the prompt was dismissed without an answer;
	// highlights are kept.
	ChoiceNone PurgeChoice = iota
	ChoiceKeep
	ChoiceRemove
	ChoiceAlwaysRemove
)

// ParsePurgeChoice maps the wire strings used by the command surface.
func ParsePurgeChoice(s string) (PurgeChoice, bool) {
	switch s {
	case "keep":
		return ChoiceKeep, true
	case "remove":
		return ChoiceRemove, true
	case "always":
		return ChoiceAlwaysRemove, true
	}
	return ChoiceNone, false
}

// Transport is the chat collaborator. Start connects using a credential
// obtained from the provider; Stop tears the connection down. Connection
// lifecycle progress arrives back as ChatConnecting/Connected/Disconnected
// events, not as return values.
type Transport interface {
	Start(ctx context.Context, token func(context.Context) (string, bool, error)) error
	Stop() error
	IsConnected() bool
}

// Prompter supplies the single-response user interactions the state machine
// suspends on. Each call blocks until one answer or cancellation; no
// registry mutation happens while suspended because the router processes
// events one at a time.
type Prompter interface {
	// Token asks the user for a chat credential. ok is false when the
	// prompt was dismissed.
	Token(ctx context.Context) (token string, ok bool, err error)
	// PurgePrompt presents Always Remove / Remove / Keep.
	PurgePrompt(ctx context.Context) (PurgeChoice, error)
}

// PreferenceStore persists the always-remove-on-disconnect preference.
type PreferenceStore interface {
	AlwaysRemoveOnDisconnect(ctx context.Context) (bool, error)
	SetAlwaysRemoveOnDisconnect(ctx context.Context, v bool) error
}

// promptTimeout bounds how long a stop sequence waits for the purge answer.
const promptTimeout = 2 * time.Minute

// ConnStateMachine tracks chat connection status and owns the
// disconnect-time purge policy. All methods run on the router goroutine.
type ConnStateMachine struct {
	state        ConnState
	transport    Transport
	registry     *highlight.Registry
	prompter     Prompter
	prefs        PreferenceStore
	alwaysRemove bool
}

// NewConnStateMachine loads the persisted purge preference and starts
// Disconnected.
func NewConnStateMachine(ctx context.Context, transport Transport, reg *highlight.Registry, prompter Prompter, prefs PreferenceStore) *ConnStateMachine {
	m := &ConnStateMachine{
		state:     Disconnected,
		transport: transport,
		registry:  reg,
		prompter:  prompter,
		prefs:     prefs,
	}
	if prefs != nil {
		v, err := prefs.AlwaysRemoveOnDisconnect(ctx)
		if err != nil {
			slog.Warn("could not load purge preference", slog.Any("err", err))
		} else {
			m.alwaysRemove = v
		}
	}
	telemetry.SetConnectionState(int(m.state))
	return m
}

// State returns the current connection state.
func (m *ConnStateMachine) State() ConnState { return m.state }

// AlwaysRemoveOnDisconnect returns the cached persisted preference.
func (m *ConnStateMachine) AlwaysRemoveOnDisconnect() bool { return m.alwaysRemove }

func (m *ConnStateMachine) setState(s ConnState) {
	if m.state == s {
		return
	}
	slog.Info("chat connection state", slog.String("from", m.state.String()), slog.String("to", s.String()))
	m.state = s
	telemetry.SetConnectionState(int(s))
}

// Start begins a connection attempt. Already connecting or connected is a
// no-op. An aborted credential prompt leaves the machine Disconnected with
// no connection attempt and no error.
func (m *ConnStateMachine) Start(ctx context.Context) error {
	if m.state != Disconnected {
		return nil
	}
	err := m.transport.Start(ctx, m.prompter.Token)
	if errors.Is(err, ErrNoToken) {
		slog.Info("chat start aborted: credential prompt dismissed")
		return nil
	}
	if err != nil {
		return err
	}
	m.setState(Connecting)
	return nil
}

// Stop runs the purge policy to completion, then tells the transport to
// disconnect. choice, when non-nil, pre-answers the prompt (used by the
// command surface and by shutdown).
func (m *ConnStateMachine) Stop(ctx context.Context, choice *PurgeChoice) error {
	purge := false
	switch {
	case m.registry.Total() == 0:
		// Nothing to purge; skip straight past the prompt.
	case m.alwaysRemove:
		purge = true
	default:
		c := ChoiceNone
		if choice != nil {
			c = *choice
		} else {
			pctx, cancel := context.WithTimeout(ctx, promptTimeout)
			answered, err := m.prompter.PurgePrompt(pctx)
			cancel()
			if err != nil {
				slog.Warn("purge prompt failed; keeping highlights", slog.Any("err", err))
			} else {
				c = answered
			}
		}
		switch c {
		case ChoiceAlwaysRemove:
			if m.prefs != nil {
				if err := m.prefs.SetAlwaysRemoveOnDisconnect(ctx, true); err != nil {
					slog.Warn("could not persist purge preference", slog.Any("err", err))
				}
			}
			m.alwaysRemove = true
			purge = true
		case ChoiceRemove:
			purge = true
		}
	}
	if purge {
		m.registry.RemoveAll()
	}
	err := m.transport.Stop()
	m.setState(Disconnected)
	return err
}

// Toggle stops when connected, otherwise starts.
func (m *ConnStateMachine) Toggle(ctx context.Context, choice *PurgeChoice) error {
	if m.state == Connected {
		return m.Stop(ctx, choice)
	}
	return m.Start(ctx)
}

// HandleConnecting, HandleConnected and HandleDisconnected apply
// transport-reported lifecycle transitions.
func (m *ConnStateMachine) HandleConnecting() { m.setState(Connecting) }

func (m *ConnStateMachine) HandleConnected() { m.setState(Connected) }

func (m *ConnStateMachine) HandleDisconnected() { m.setState(Disconnected) }
