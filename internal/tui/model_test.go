package tui

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/FranksOps/imgsearch/internal/search"
	tea "github.com/charmbracelet/bubbletea"
)

type clientFunc func(ctx context.Context, query string) (string, error)

func (f clientFunc) Fetch(ctx context.Context, query string) (string, error) { return f(ctx, query) }

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newTestModel(t *testing.T, client search.Client) (*Model, *search.Orchestrator) {
	t.Helper()
	orch := search.New(client, search.WithLogger(discard()))
	m := New(orch, discard())
	t.Cleanup(func() {
		m.Release()
		orch.Close()
	})
	m.Update(wakeMsg{})
	return m, orch
}

func typeText(m *Model, s string) {
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	m.Update(wakeMsg{})
}

func TestModel_InitialState(t *testing.T) {
	m, _ := newTestModel(t, clientFunc(func(context.Context, string) (string, error) { return "", nil }))

	if m.loading || m.enabled || m.showErr || len(m.items) != 0 {
		t.Errorf("unexpected initial model state %+v", m)
	}
	if !strings.Contains(m.View(), "0 images") {
		t.Errorf("expected empty result line in view:\n%s", m.View())
	}
}

func TestModel_TypingEnablesButton(t *testing.T) {
	m, orch := newTestModel(t, clientFunc(func(context.Context, string) (string, error) { return "", nil }))

	typeText(m, "ca")
	if m.enabled {
		t.Error("expected button disabled for two characters")
	}

	typeText(m, "t")
	if !m.enabled {
		t.Error("expected button enabled for three characters")
	}
	if got := orch.Snapshot().SearchWord; got != "cat" {
		t.Errorf("expected search word %q, got %q", "cat", got)
	}
}

func TestModel_EnterWhileDisabledDoesNothing(t *testing.T) {
	var calls atomic.Int32
	m, orch := newTestModel(t, clientFunc(func(context.Context, string) (string, error) {
		calls.Add(1)
		return "", nil
	}))

	typeText(m, "ab")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	orch.Wait()

	if calls.Load() != 0 {
		t.Errorf("expected no search, got %d", calls.Load())
	}
}

func TestModel_SearchShowsItems(t *testing.T) {
	release := make(chan struct{})
	m, orch := newTestModel(t, clientFunc(func(_ context.Context, q string) (string, error) {
		<-release
		return `<img src="https://msp.c.yimg.jp/` + q + `/1.jpg"><img src="https://msp.c.yimg.jp/` + q + `/2.jpg">`, nil
	}))

	typeText(m, "dogs")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	_, cmd := m.Update(wakeMsg{})
	if !m.loading {
		t.Fatal("expected loading after Enter")
	}
	if cmd == nil {
		t.Error("expected spinner and inbox commands")
	}
	if !strings.Contains(m.View(), "Searching...") {
		t.Errorf("expected loading indicator in view:\n%s", m.View())
	}

	close(release)
	orch.Wait()
	m.Update(wakeMsg{})

	if m.loading {
		t.Error("expected loading cleared")
	}
	if len(m.items) != 2 {
		t.Fatalf("expected 2 items, got %v", m.items)
	}
	view := m.View()
	for _, want := range []string{"https://msp.c.yimg.jp/dogs/1.jpg", "https://msp.c.yimg.jp/dogs/2.jpg", "2 images"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected view to contain %q:\n%s", want, view)
		}
	}
}

func TestModel_ErrorBox(t *testing.T) {
	m, orch := newTestModel(t, clientFunc(func(context.Context, string) (string, error) {
		return "", errors.New("engine unreachable")
	}))

	typeText(m, "birds")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	orch.Wait()
	m.Update(wakeMsg{})

	if !m.showErr {
		t.Fatal("expected error box")
	}
	if !strings.Contains(m.View(), "engine unreachable") {
		t.Errorf("expected error message in view:\n%s", m.View())
	}

	// Esc dismisses the box instead of quitting.
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc}); cmd != nil {
		t.Error("expected no command when dismissing the error box")
	}
	if m.showErr {
		t.Error("expected error box dismissed")
	}
	if strings.Contains(m.View(), "engine unreachable") {
		t.Error("expected error message hidden after dismiss")
	}
}

func TestModel_Quit(t *testing.T) {
	m, _ := newTestModel(t, clientFunc(func(context.Context, string) (string, error) { return "", nil }))

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}

func TestModel_Scroll(t *testing.T) {
	m, _ := newTestModel(t, clientFunc(func(context.Context, string) (string, error) { return "", nil }))
	m.Update(tea.WindowSizeMsg{Width: 80, Height: chromeLines + 3})

	m.apply(itemsMsg{"a", "b", "c", "d", "e"})
	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	if m.offset != 2 {
		t.Errorf("expected offset clamped to 2, got %d", m.offset)
	}

	m.Update(tea.KeyMsg{Type: tea.KeyPgUp})
	if m.offset != 0 {
		t.Errorf("expected offset 0, got %d", m.offset)
	}
}

func TestModel_ReleaseStopsWaiting(t *testing.T) {
	m, _ := newTestModel(t, clientFunc(func(context.Context, string) (string, error) { return "", nil }))
	m.inbox.drain()
	m.Release()

	if msg := m.inbox.wait()(); msg != nil {
		// A wake-up may already be pending from setup; the next wait must see done.
		if msg = m.inbox.wait()(); msg != nil {
			t.Errorf("expected nil after release, got %T", msg)
		}
	}
}
