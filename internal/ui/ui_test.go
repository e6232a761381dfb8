package ui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/musync/internal/models"
	"github.com/desertthunder/musync/internal/tasks"
)

func TestModel(t *testing.T) {
	t.Run("Relays progress then quits with the result", func(t *testing.T) {
		job := func(ctx context.Context, progress chan<- tasks.ProgressUpdate) (any, error) {
			progress <- tasks.ProgressUpdate{Phase: tasks.AddSongs, Step: 1, Total: 2, Message: "[1/2] ✓ X - A (SoundCloud)"}
			progress <- tasks.ProgressUpdate{
				Phase:   tasks.AddSongs,
				Step:    2,
				Total:   2,
				Message: "[2/2] ✗ Y - B (SoundCloud)",
				Data: tasks.SongOutcome{
					Song:   models.PlatformSong{Title: "B", Artist: "Y"},
					Status: tasks.StatusNotFound,
				},
			}
			return 42, nil
		}

		m := NewModel(context.Background(), "Syncing", job)
		cmd := m.start()

		for range 2 {
			msg := cmd()
			if _, ok := msg.(progressMsg); !ok {
				t.Fatalf("expected progressMsg, got %T", msg)
			}
			_, cmd = m.Update(msg)
		}

		view := m.View()
		if !strings.Contains(view, "Syncing") || !strings.Contains(view, "add songs") {
			t.Errorf("view missing title or phase:\n%s", view)
		}
		if !strings.Contains(view, "[2/2]") {
			t.Errorf("view missing latest message:\n%s", view)
		}

		m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("d")})
		if view := m.View(); !strings.Contains(view, "Y - B (not_found)") {
			t.Errorf("details missing failed song:\n%s", view)
		}

		msg := cmd()
		done, ok := msg.(doneMsg)
		if !ok {
			t.Fatalf("expected doneMsg, got %T", msg)
		}
		_, quit := m.Update(done)
		if quit == nil {
			t.Fatal("expected quit command")
		}
		if _, ok := quit().(tea.QuitMsg); !ok {
			t.Error("expected tea.QuitMsg")
		}

		result, err := m.Result()
		if err != nil || result != 42 {
			t.Errorf("unexpected result %v, %v", result, err)
		}
		if !strings.Contains(m.View(), "Done") {
			t.Errorf("expected done view, got:\n%s", m.View())
		}
	})

	t.Run("Job error", func(t *testing.T) {
		m := NewModel(context.Background(), "Importing", func(context.Context, chan<- tasks.ProgressUpdate) (any, error) {
			return nil, errors.New("boom")
		})
		m.Update(m.start()())

		if _, err := m.Result(); err == nil || err.Error() != "boom" {
			t.Errorf("expected boom, got %v", err)
		}
		if !strings.Contains(m.View(), "boom") {
			t.Error("view should show the error")
		}
	})

	t.Run("Quit cancels the job context", func(t *testing.T) {
		started := make(chan struct{})
		m := NewModel(context.Background(), "Syncing", func(ctx context.Context, _ chan<- tasks.ProgressUpdate) (any, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		})
		cmd := m.start()
		<-started

		m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
		m.Update(cmd())

		if _, err := m.Result(); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("Result before completion", func(t *testing.T) {
		m := NewModel(context.Background(), "Syncing", nil)
		if _, err := m.Result(); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestPalette(t *testing.T) {
	for name, render := range map[string]func(string) string{
		"Title":   Title,
		"Success": Success,
		"Error":   Error,
		"Warning": Warning,
		"Muted":   Muted,
	} {
		if got := render("text"); !strings.Contains(got, "text") {
			t.Errorf("%s dropped its input: %q", name, got)
		}
	}
}
