// Package nats provides a distributed A2A transport over NATS.
//
// Each agent owns a request subject ("a2a.agent.<id>") served with NATS
// request/reply, and each team owns a broadcast subject ("a2a.team.<id>")
// served with plain publish. The transport serializes core.Message envelopes
// as JSON.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/taskmesh/taskmesh/core"
	"github.com/taskmesh/taskmesh/logging"
)

const (
	agentSubjectPrefix = "a2a.agent."
	teamSubjectPrefix  = "a2a.team."
)

// AgentSubject returns the request subject for an agent id.
func AgentSubject(agentID string) string { return agentSubjectPrefix + agentID }

// TeamSubject returns the broadcast subject for a team id.
func TeamSubject(teamID string) string { return teamSubjectPrefix + teamID }

// Transport implements core.Transport over a NATS connection.
type Transport struct {
	nc     *nats.Conn
	logger logging.Logger
}

// Options configures a Transport.
type Options struct {
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// New creates a transport over an established NATS connection. The caller
// owns the connection's lifecycle.
func New(nc *nats.Conn, optFns ...func(o *Options)) *Transport {
	opts := Options{Logger: logging.NoOpLogger{}}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Transport{nc: nc, logger: opts.Logger}
}

// Connect dials a NATS server and wraps the connection in a transport.
func Connect(url string, optFns ...func(o *Options)) (*Transport, error) {
	nc, err := nats.Connect(url,
		nats.Name("taskmesh-a2a"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return New(nc, optFns...), nil
}

// Close drains the underlying connection.
func (t *Transport) Close() error {
	if err := t.nc.Drain(); err != nil {
		return fmt.Errorf("drain NATS connection: %w", err)
	}
	return nil
}

// Request implements core.Transport using NATS request/reply. The reply
// payload must be a RESPONSE envelope.
func (t *Transport) Request(ctx context.Context, msg core.Message, timeout time.Duration) (*core.Message, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal message %s: %w", msg.ID, err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	subject := AgentSubject(msg.Recipient)
	reply, err := t.nc.RequestWithContext(reqCtx, subject, data)
	if err != nil {
		return nil, fmt.Errorf("request to %s: %w", subject, err)
	}

	var resp core.Message
	if err := json.Unmarshal(reply.Data, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response from %s: %w", subject, err)
	}

	return &resp, nil
}

// Notify implements core.Transport. A Broadcast recipient publishes to the
// team subject from the message context; otherwise the message goes to the
// recipient's agent subject without awaiting a reply.
func (t *Transport) Notify(ctx context.Context, msg core.Message) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before publish: %w", err)
	}

	subject := AgentSubject(msg.Recipient)
	if msg.Recipient == core.Broadcast {
		teamID, _ := msg.Context["team_id"].(string)
		if teamID == "" {
			return fmt.Errorf("broadcast notification without team_id context")
		}
		subject = TeamSubject(teamID)
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message %s: %w", msg.ID, err)
	}

	if err := t.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}

	return nil
}

// Handler processes one inbound envelope. For requests the returned message
// is sent back as the reply.
type Handler func(ctx context.Context, msg core.Message) (*core.Message, error)

// Serve subscribes an agent's request subject and answers inbound requests
// with the handler's response. Handler errors are logged and the request is
// left to time out on the caller's side.
func (t *Transport) Serve(agentID string, teamIDs []string, h Handler) (*Subscription, error) {
	sub := &Subscription{}

	agentSub, err := t.nc.Subscribe(AgentSubject(agentID), func(m *nats.Msg) {
		t.dispatch(m, agentID, h, true)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe agent subject for %s: %w", agentID, err)
	}
	sub.subs = append(sub.subs, agentSub)

	for _, teamID := range teamIDs {
		teamSub, err := t.nc.Subscribe(TeamSubject(teamID), func(m *nats.Msg) {
			t.dispatch(m, agentID, h, false)
		})
		if err != nil {
			sub.Unsubscribe()
			return nil, fmt.Errorf("subscribe team subject for %s: %w", teamID, err)
		}
		sub.subs = append(sub.subs, teamSub)
	}

	return sub, nil
}

func (t *Transport) dispatch(m *nats.Msg, agentID string, h Handler, reply bool) {
	var msg core.Message
	if err := json.Unmarshal(m.Data, &msg); err != nil {
		t.logger.Warn("dropping undecodable message", "subject", m.Subject, "error", err)
		return
	}

	// Team subjects carry the sender's own broadcasts back to it.
	if msg.Sender.ID == agentID {
		return
	}

	resp, err := h(context.Background(), msg)
	if err != nil {
		t.logger.Warn("handler failed", "agent_id", agentID, "message_id", msg.ID, "error", err)
		return
	}

	if !reply || m.Reply == "" || resp == nil {
		return
	}

	data, err := json.Marshal(resp)
	if err != nil {
		t.logger.Warn("marshal reply failed", "agent_id", agentID, "error", err)
		return
	}
	if err := m.Respond(data); err != nil {
		t.logger.Warn("send reply failed", "agent_id", agentID, "error", err)
	}
}

// Subscription bundles the NATS subscriptions backing one served agent.
type Subscription struct {
	subs []*nats.Subscription
}

// Unsubscribe tears down all underlying subscriptions.
func (s *Subscription) Unsubscribe() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	s.subs = nil
}
