// Package notify delivers operator-facing notifications. Event handlers
// produce a Message (template plus named parameters); the notifier performs
// the substitution and delivery. Delivery is best-effort: failures are
// logged by callers and never block state persistence.
package notify

import (
	"context"
	"strings"
)

// Message is a notification request: a template with {name} placeholders and
// the parameters to substitute into it.
type Message struct {
	Template string
	Params   map[string]string
}

// Render substitutes the parameters into the template.
func (m Message) Render() string {
	if len(m.Params) == 0 {
		return m.Template
	}
	pairs := make([]string, 0, len(m.Params)*2)
	for k, v := range m.Params {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(m.Template)
}

// Notifier delivers a rendered message to an operator-facing channel.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
	Close()
}

// Nop is a Notifier that discards everything. Used when no endpoint is
// configured and during replays.
type Nop struct{}

func (Nop) Notify(context.Context, Message) error { return nil }
func (Nop) Close()                                {}

// Multi fans a message out to several sinks. All sinks are attempted; the
// first error is returned.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, msg Message) error {
	var first error
	for _, n := range m {
		if err := n.Notify(ctx, msg); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m Multi) Close() {
	for _, n := range m {
		n.Close()
	}
}
