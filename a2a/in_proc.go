package a2a

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/taskmesh/taskmesh/core"
	"github.com/taskmesh/taskmesh/logging"
)

// Handler processes one inbound message for an agent. For REQUEST messages
// the returned message is delivered to the caller as the RESPONSE; for
// NOTIFICATION messages the return values are ignored.
type Handler func(ctx context.Context, msg core.Message) (*core.Message, error)

// InProcTransport delivers messages to handlers registered in the same
// process. Delivery to a single recipient follows send order because Request
// runs handlers synchronously on the caller's goroutine.
type InProcTransport struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	teams    core.TeamStore
	logger   logging.Logger
}

// InProcOptions configures an InProcTransport.
type InProcOptions struct {
	// Teams resolves broadcast recipients from a message's team context.
	// Without it, Broadcast notifications fail.
	Teams core.TeamStore

	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// NewInProcTransport creates an in-process transport.
func NewInProcTransport(optFns ...func(o *InProcOptions)) *InProcTransport {
	opts := InProcOptions{Logger: logging.NoOpLogger{}}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &InProcTransport{
		handlers: make(map[string]Handler),
		teams:    opts.Teams,
		logger:   opts.Logger,
	}
}

// Register installs the handler receiving messages addressed to agentID.
// Registering again replaces the previous handler.
func (t *InProcTransport) Register(agentID string, h Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[agentID] = h
}

func (t *InProcTransport) handler(agentID string) (Handler, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	h, ok := t.handlers[agentID]
	return h, ok
}

// Request implements core.Transport. The handler runs under a context bound
// by the given timeout; a handler that returns no response is an error.
func (t *InProcTransport) Request(ctx context.Context, msg core.Message, timeout time.Duration) (*core.Message, error) {
	h, ok := t.handler(msg.Recipient)
	if !ok {
		return nil, fmt.Errorf("no handler registered for agent %s", msg.Recipient)
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		resp *core.Message
		err  error
	}
	done := make(chan outcome, 1)

	go func() {
		resp, err := h(reqCtx, msg)
		done <- outcome{resp: resp, err: err}
	}()

	select {
	case <-reqCtx.Done():
		return nil, fmt.Errorf("request to %s: %w", msg.Recipient, reqCtx.Err())
	case out := <-done:
		if out.err != nil {
			return nil, fmt.Errorf("request to %s: %w", msg.Recipient, out.err)
		}
		if out.resp == nil {
			return nil, fmt.Errorf("request to %s: handler returned no response", msg.Recipient)
		}
		return out.resp, nil
	}
}

// Notify implements core.Transport. Delivery happens asynchronously; handler
// errors are logged, never returned. A Broadcast recipient fans out to all
// team members except the sender, resolved from the message's team context.
func (t *InProcTransport) Notify(ctx context.Context, msg core.Message) error {
	if msg.Recipient != core.Broadcast {
		t.deliverAsync(ctx, msg.Recipient, msg)
		return nil
	}

	teamID, _ := msg.Context["team_id"].(string)
	if teamID == "" {
		return fmt.Errorf("broadcast notification without team_id context")
	}
	if t.teams == nil {
		return fmt.Errorf("broadcast notification requires a team store")
	}

	team, err := t.teams.GetTeam(ctx, teamID)
	if err != nil {
		return fmt.Errorf("broadcast to team %s: %w", teamID, err)
	}

	for _, m := range team.MemberList() {
		if m.AgentID == msg.Sender.ID {
			continue
		}
		delivery := msg
		delivery.Recipient = m.AgentID
		t.deliverAsync(ctx, m.AgentID, delivery)
	}

	return nil
}

func (t *InProcTransport) deliverAsync(ctx context.Context, agentID string, msg core.Message) {
	h, ok := t.handler(agentID)
	if !ok {
		t.logger.Warn("notification dropped: no handler", "agent_id", agentID)
		return
	}

	go func() {
		if _, err := h(ctx, msg); err != nil {
			t.logger.Warn("notification handler failed", "agent_id", agentID, "error", err)
		}
	}()
}
