// Package tui provides the Bubble Tea presentation layer. It renders
// the lifecycle events emitted by the session orchestrator; all
// conversation state lives in the store, not here.
package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/murmur/chat"
)

// SendFunc runs one turn against the orchestrator. It blocks until the
// turn settles; lifecycle events arrive on the model's event channel.
type SendFunc func(ctx context.Context, sessionID, text string) error

// Run creates and runs the Bubble Tea program. It blocks until the
// program exits. When the context is cancelled, the program quits.
func Run(ctx context.Context, m Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen())
	go func() {
		<-ctx.Done()
		p.Quit()
	}()
	_, err := p.Run()
	return err
}

// TurnEventMsg wraps an orchestrator lifecycle event for the model.
type TurnEventMsg struct {
	Event chat.TurnEvent
}

// TurnDoneMsg signals that a Send call has settled.
type TurnDoneMsg struct {
	Err error
}
