package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// wakeMsg tells Update to drain the inbox.
type wakeMsg struct{}

// inbox buffers stream deliveries for the tea loop. Orchestrator streams
// deliver synchronously, sometimes from inside Update itself, so pushing
// never blocks; a single pending wake-up is enough for any number of messages.
type inbox struct {
	mu     sync.Mutex
	msgs   []tea.Msg
	signal chan struct{}
	done   chan struct{}
	once   sync.Once
}

func newInbox() *inbox {
	return &inbox{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (b *inbox) push(msg tea.Msg) {
	b.mu.Lock()
	b.msgs = append(b.msgs, msg)
	b.mu.Unlock()

	select {
	case b.signal <- struct{}{}:
	default:
	}
}

func (b *inbox) drain() []tea.Msg {
	b.mu.Lock()
	defer b.mu.Unlock()
	msgs := b.msgs
	b.msgs = nil
	return msgs
}

// wait returns a command that resolves once messages are pending.
func (b *inbox) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-b.signal:
			return wakeMsg{}
		case <-b.done:
			return nil
		}
	}
}

func (b *inbox) close() {
	b.once.Do(func() { close(b.done) })
}
