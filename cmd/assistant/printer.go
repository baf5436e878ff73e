package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/term"
	"github.com/koscakluka/ema-realtime/core/events"
	"github.com/muesli/reflow/wordwrap"
)

const defaultWrapWidth = 80

var (
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	systemStyle    = lipgloss.NewStyle().Faint(true).Italic(true)
)

// transcriptPrinter renders the conversation as wrapped, colored lines.
type transcriptPrinter struct {
	out   io.Writer
	width int
	mu    sync.Mutex
}

func newTranscriptPrinter(out io.Writer) *transcriptPrinter {
	width := defaultWrapWidth
	if f, ok := out.(*os.File); ok {
		if w, _, err := term.GetSize(f.Fd()); err == nil && w > 0 {
			width = w
		}
	}
	return &transcriptPrinter{out: out, width: width}
}

func (p *transcriptPrinter) Handle(event events.Event) {
	switch e := event.(type) {
	case events.UserTranscriptFinal:
		p.line(userStyle.Render("You:"), e.Transcript)
	case events.AssistantResponseFinal:
		p.line(assistantStyle.Render("Assistant:"), e.Transcript)
	case events.ToolCallStarted:
		p.System(fmt.Sprintf("calling %s", e.Name))
	case events.ToolCallFailed:
		p.System(fmt.Sprintf("%s failed: %s", e.Name, e.Error))
	case events.AlarmFired:
		p.System(fmt.Sprintf("alarm %s went off", e.AlarmID))
	case events.SessionEnded:
		p.System(fmt.Sprintf("session ended (%s)", e.Reason))
	}
}

func (p *transcriptPrinter) System(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, systemStyle.Render(wordwrap.String(text, p.width)))
}

func (p *transcriptPrinter) line(label, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "%s %s\n", label, wordwrap.String(text, max(p.width-lipgloss.Width(label)-1, 20)))
}
