package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/glamour"

	"docchat/internal/chat"
	"docchat/internal/history"
	"docchat/internal/terminal"
)

// Display renders the upload panel and conversation to a terminal
type Display struct {
	out      io.Writer
	width    int
	color    bool
	renderer *glamour.TermRenderer
	spinner  *terminal.Spinner

	mu   sync.Mutex
	busy bool
}

// NewDisplay creates a display writing to out. With color disabled the
// markdown renderer uses its plain style and no ANSI codes are written.
func NewDisplay(out io.Writer, width int, color bool) *Display {
	style := glamour.WithStandardStyle("notty")
	if color {
		style = glamour.WithAutoStyle()
	}
	renderer, _ := glamour.NewTermRenderer(
		style,
		glamour.WithWordWrap(max(width-10, 20)),
	)

	d := &Display{
		out:      out,
		width:    width,
		color:    color,
		renderer: renderer,
	}
	if color {
		d.spinner = terminal.NewSpinner(out)
	}
	return d
}

// Color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

func (d *Display) c(code string) string {
	if !d.color {
		return ""
	}
	return code
}

// printf writes with the spinner paused; callers must not hold d.mu
func (d *Display) printf(format string, args ...interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.printfLocked(format, args...)
}

func (d *Display) printfLocked(format string, args ...interface{}) {
	if d.busy {
		d.stopSpinner()
	}
	fmt.Fprintf(d.out, format, args...)
	if d.busy {
		d.startSpinner()
	}
}

// startSpinner and stopSpinner are no-ops without a TTY
func (d *Display) startSpinner() {
	if d.spinner != nil {
		d.spinner.Start("Loading Chat...")
	}
}

func (d *Display) stopSpinner() {
	if d.spinner != nil {
		d.spinner.Stop()
	}
}

// ClearScreen clears the terminal
func (d *Display) ClearScreen() {
	if d.color {
		d.printf("\033[2J\033[H")
	}
}

// PrintWelcome displays the banner and command summary
func (d *Display) PrintWelcome(backendURL string) {
	d.ClearScreen()
	d.printf("%s%sdocchat · ask questions about your documents%s\n", d.c(colorBold), d.c(colorCyan), d.c(colorReset))
	d.printf("\n%s%sBackend:%s %s\n", d.c(colorBold), d.c(colorGray), d.c(colorReset), backendURL)
	d.printf("%sCommands:%s /select <files> | /upload | /url <a,b> | /files | /session | /history | /help | /exit\n", d.c(colorGray), d.c(colorReset))
	d.printf("%sAnything else is sent as a question.%s\n\n", d.c(colorGray), d.c(colorReset))
}

// PrintHelp lists the REPL commands
func (d *Display) PrintHelp() {
	d.printf(`%sCommands%s
  /select <paths...>   choose files to upload (globs allowed)
  /files [partial]     list files in the working directory
  /upload              upload the selected files and start a session
  /url <a,b,...>       ingest one or more comma-separated URLs
  /session             show the current session
  /history [n|all]     show this run's transcript, its last n messages,
                       or a list of saved transcripts
  /clear               clear the screen
  /exit, /quit         quit
`, d.c(colorBold), d.c(colorReset))
}

// PrintSeparator prints a visual separator
func (d *Display) PrintSeparator() {
	line := strings.Repeat("─", min(d.width, 80))
	d.printf("%s%s%s\n", d.c(colorDim), line, d.c(colorReset))
}

// PrintPrompt displays user input prompt
func (d *Display) PrintPrompt() {
	d.printf("\n%s%s❯%s ", d.c(colorBold), d.c(colorGreen), d.c(colorReset))
}

// HandleEvent renders store transitions. It has the signature expected by
// chat.Store.Subscribe.
func (d *Display) HandleEvent(ev chat.Event) {
	switch ev.Type {
	case chat.EventBusy:
		d.setBusy(ev.Busy)
	case chat.EventMessage:
		d.PrintMessage(ev.Message)
	case chat.EventStatus:
		if ev.Message.Status == chat.StatusFailed {
			d.printf("%s✗ No answer received for: %s%s\n", d.c(colorRed), truncate(ev.Message.Text, 60), d.c(colorReset))
		}
	case chat.EventSelection:
		d.PrintSelection(ev.Selection)
	}
}

func (d *Display) setBusy(busy bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if busy == d.busy {
		return
	}
	d.busy = busy
	if busy {
		d.startSpinner()
	} else {
		d.stopSpinner()
	}
}

// PrintMessage displays one conversation entry. Text is rendered as
// markdown on every display; the stored text is never altered.
func (d *Display) PrintMessage(msg chat.Message) {
	var sb strings.Builder

	who := "You"
	if msg.Role == chat.RoleBot {
		who = "Assistant"
	}
	fmt.Fprintf(&sb, "\n%s┌─ %s · %s%s\n", d.c(colorGray), who, msg.CreatedAt.Format("15:04:05"), d.c(colorReset))

	for _, line := range strings.Split(d.renderMarkdown(msg.Text), "\n") {
		fmt.Fprintf(&sb, "%s│%s %s\n", d.c(colorGray), d.c(colorReset), line)
	}
	fmt.Fprintf(&sb, "%s└%s\n", d.c(colorGray), d.c(colorReset))

	d.printf("%s", sb.String())
}

func (d *Display) renderMarkdown(text string) string {
	if d.renderer == nil {
		return text
	}
	rendered, err := d.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(rendered, "\n")
}

// PrintSelection lists the files chosen for the next upload
func (d *Display) PrintSelection(paths []string) {
	if len(paths) == 0 {
		d.PrintInfo("No files selected")
		return
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%sSelected Files:%s\n", d.c(colorGray), d.c(colorReset))
	for _, p := range paths {
		fmt.Fprintf(&sb, "  • %s\n", p)
	}
	d.printf("%s", sb.String())
}

// PrintSession shows the backend session handle
func (d *Display) PrintSession(s chat.Session) {
	if s.Empty() {
		d.PrintInfo("No session yet. Upload files with /upload to start one.")
		return
	}
	d.printf("%sSession:%s %s\n%sFile URI:%s %s\n", d.c(colorGray), d.c(colorReset), s.SessionID, d.c(colorGray), d.c(colorReset), s.FileURI)
}

// PrintTranscript shows every message of a transcript
func (d *Display) PrintTranscript(t *history.Transcript) {
	if t == nil || len(t.Messages) == 0 {
		d.PrintInfo("No conversation history yet")
		return
	}

	d.PrintSeparator()
	d.printf("Conversation since %s\n", t.StartedAt.Format(time.DateTime))
	d.printMessages(t.Messages)
}

// PrintRecent shows the last few messages of the conversation
func (d *Display) PrintRecent(msgs []chat.Message) {
	if len(msgs) == 0 {
		d.PrintInfo("No conversation history yet")
		return
	}
	d.PrintSeparator()
	d.printf("Last %d message(s)\n", len(msgs))
	d.printMessages(msgs)
}

func (d *Display) printMessages(msgs []chat.Message) {
	d.PrintSeparator()
	for _, msg := range msgs {
		who := "You"
		if msg.Role == chat.RoleBot {
			who = "Assistant"
		}
		marker := ""
		if msg.Status == chat.StatusFailed {
			marker = " (not answered)"
		}
		d.printf("\n[%s] %s%s:\n%s\n", msg.CreatedAt.Format("15:04:05"), who, marker, msg.Text)
	}
	d.PrintSeparator()
}

// PrintTranscriptList summarises saved transcripts, one line each
func (d *Display) PrintTranscriptList(ts []history.Transcript) {
	if len(ts) == 0 {
		d.PrintInfo("No saved transcripts")
		return
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%sSaved transcripts:%s\n", d.c(colorGray), d.c(colorReset))
	for _, t := range ts {
		session := "no session"
		if !t.Session.Empty() {
			session = "session " + t.Session.SessionID
		}
		fmt.Fprintf(&sb, "  %s  %3d message(s)  %d upload(s)  %s\n",
			t.StartedAt.Format(time.DateTime), len(t.Messages), len(t.Uploads), session)
	}
	d.printf("%s", sb.String())
}

// Alert shows a blocking notice. It implements chat.Alerter.
func (d *Display) Alert(a chat.Alert) {
	switch a.Kind {
	case chat.AlertSuccess:
		d.PrintSuccess(a.Message)
	case chat.AlertError:
		d.printf("%s⚠ %s%s\n", d.c(colorYellow), a.Message, d.c(colorReset))
	default:
		d.PrintInfo(a.Message)
	}
}

// PrintInfo displays info message
func (d *Display) PrintInfo(msg string) {
	d.printf("%sℹ %s%s\n", d.c(colorCyan), msg, d.c(colorReset))
}

// PrintWarning displays warning message
func (d *Display) PrintWarning(msg string) {
	d.printf("%s⚠ %s%s\n", d.c(colorYellow), msg, d.c(colorReset))
}

// PrintError displays error message
func (d *Display) PrintError(err error) {
	d.printf("%s✗ Error: %v%s\n", d.c(colorRed), err, d.c(colorReset))
}

// PrintSuccess displays success message
func (d *Display) PrintSuccess(msg string) {
	d.printf("%s✓ %s%s\n", d.c(colorGreen), msg, d.c(colorReset))
}

// PrintGoodbye displays goodbye message
func (d *Display) PrintGoodbye() {
	d.setBusy(false)
	d.printf("\n%s%sGoodbye!%s\n", d.c(colorBold), d.c(colorCyan), d.c(colorReset))
}

// truncate shortens s to at most maxLen runes
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
