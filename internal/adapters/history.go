// Package adapters holds helpers shared by the concrete engine adapters in
// its subpackages: conversation history through the memory store, request
// parameter lookups and credential resolution.
package adapters

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"modelgate/internal/memory"
)

// Conversation binds a memory store to one model version. A nil store turns
// every method into a no-op so adapters never branch on it.
type Conversation struct {
	Store   memory.Store
	Version string
	Log     zerolog.Logger
}

// History returns the prior turns of session. Lookup failures are logged and
// yield an empty history; a chat call proceeds without context rather than
// failing.
func (c Conversation) History(ctx context.Context, session string) []memory.Turn {
	if c.Store == nil || session == "" {
		return nil
	}
	turns, err := c.Store.Load(ctx, session, c.Version)
	if err != nil {
		c.Log.Warn().Err(err).Str("session_id", session).Msg("memory load failed")
		return nil
	}
	return turns
}

// Record appends the user message and the reply to session.
func (c Conversation) Record(ctx context.Context, session, user, reply string) {
	if c.Store == nil || session == "" {
		return
	}
	for _, t := range []memory.Turn{{Role: RoleUser, Content: user}, {Role: RoleAssistant, Content: reply}} {
		if err := c.Store.Append(ctx, session, c.Version, t); err != nil {
			c.Log.Warn().Err(err).Str("session_id", session).Msg("memory append failed")
			return
		}
	}
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Transcript renders turns plus the pending user message as a plain prompt
// for completion-style backends.
func Transcript(system string, turns []memory.Turn, user string) string {
	var b strings.Builder
	if system != "" {
		b.WriteString(system)
		b.WriteString("\n\n")
	}
	for _, t := range turns {
		b.WriteString(label(t.Role))
		b.WriteString(": ")
		b.WriteString(t.Content)
		b.WriteString("\n")
	}
	b.WriteString("User: ")
	b.WriteString(user)
	b.WriteString("\nAssistant:")
	return b.String()
}

func label(role string) string {
	switch role {
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	default:
		return "User"
	}
}
