package dev

import (
	"context"
	stderrors "errors"
	"io"

	tea "github.com/charmbracelet/bubbletea"
)

// frameMsg replaces the frame on screen.
type frameMsg string

// frameModel shows the most recent dashboard frame. Bubbletea's renderer
// redraws only the lines that changed between frames.
type frameModel struct {
	frame string
}

func (m frameModel) Init() tea.Cmd { return nil }

func (m frameModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if f, ok := msg.(frameMsg); ok {
		m.frame = string(f)
	}
	return m, nil
}

func (m frameModel) View() string { return m.frame }

// Terminal draws dashboard frames inline on out.
type Terminal struct {
	program *tea.Program
	done    chan struct{}
	err     error
}

// NewTerminal creates a Terminal. It does not read input or install
// signal handlers; ctx ends it.
func NewTerminal(ctx context.Context, out io.Writer) *Terminal {
	return &Terminal{
		program: tea.NewProgram(frameModel{},
			tea.WithContext(ctx),
			tea.WithInput(nil),
			tea.WithOutput(out),
			tea.WithoutSignalHandler(),
		),
		done: make(chan struct{}),
	}
}

// Start runs the program in the background.
func (t *Terminal) Start() {
	go func() {
		defer close(t.done)
		if _, err := t.program.Run(); err != nil && !stderrors.Is(err, tea.ErrProgramKilled) {
			t.err = err
		}
	}()
}

// Show replaces the frame on screen.
func (t *Terminal) Show(frame string) {
	t.program.Send(frameMsg(frame))
}

// Stop ends the program, leaving the last frame on screen.
func (t *Terminal) Stop() error {
	t.program.Quit()
	<-t.done
	return t.err
}
