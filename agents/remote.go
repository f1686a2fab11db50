package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"trpc.group/trpc-go/trpc-a2a-go/client"
	"trpc.group/trpc-go/trpc-a2a-go/protocol"

	"github.com/carelink-project/carelink-multi-agent/registry"
	"github.com/carelink-project/carelink-multi-agent/resilience"
)

// RemoteAgent dispatches to an out-of-process domain agent over the A2A
// protocol. A circuit breaker keeps a failing endpoint from slowing every
// request down.
type RemoteAgent struct {
	desc    *registry.AgentDescriptor
	client  *client.A2AClient
	breaker *resilience.CircuitBreaker
}

// NewRemoteAgent connects to the agent endpoint from the descriptor.
func NewRemoteAgent(desc *registry.AgentDescriptor) (*RemoteAgent, error) {
	c, err := client.NewA2AClient(desc.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("a2a client for %s: %w", desc.Domain, err)
	}
	return &RemoteAgent{
		desc:    desc,
		client:  c,
		breaker: resilience.NewCircuitBreaker(5, 30*time.Second),
	}, nil
}

// Handle forwards the query text and returns the agent's reply.
func (a *RemoteAgent) Handle(ctx context.Context, req *Request) (*Result, error) {
	var answer string
	err := a.breaker.Execute(func() error {
		text, err := a.send(ctx, req.Text)
		if err != nil {
			return err
		}
		answer = text
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s agent: %w", a.desc.Domain, err)
	}
	return &Result{
		Answer: answer,
		Meta: map[string]string{
			"agent":    a.desc.Name,
			"endpoint": a.desc.Endpoint,
		},
	}, nil
}

func (a *RemoteAgent) send(ctx context.Context, text string) (string, error) {
	message := protocol.NewMessage(
		protocol.MessageRoleUser,
		[]protocol.Part{protocol.NewTextPart(text)},
	)
	result, err := a.client.SendMessage(ctx, protocol.SendMessageParams{Message: message})
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}

	switch result.Result.GetKind() {
	case protocol.KindMessage:
		msg := result.Result.(*protocol.Message)
		return extractText(*msg), nil
	case protocol.KindTask:
		task := result.Result.(*protocol.Task)
		if task.Status.Message != nil {
			return extractText(*task.Status.Message), nil
		}
		return "", fmt.Errorf("no response message from %s agent", a.desc.Domain)
	default:
		return "", fmt.Errorf("unexpected response type from %s agent: %T", a.desc.Domain, result.Result)
	}
}

func extractText(message protocol.Message) string {
	var sb strings.Builder
	for _, part := range message.Parts {
		if textPart, ok := part.(*protocol.TextPart); ok {
			sb.WriteString(textPart.Text)
		}
	}
	return sb.String()
}
