package cmds

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-go-golems/banter/pkg/inference/engine"
	"github.com/go-go-golems/banter/pkg/inference/session"
	"github.com/go-go-golems/banter/pkg/ui"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	input "github.com/tcnksm/go-input"
)

const replHelp = `Commands:
  /1 .. /4   send a starter prompt (empty conversation only)
  /help      show this help
  /quit      leave`

type ReplSettings struct {
	Theme ui.Theme
	Plain bool
	Width int
}

func NewReplCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Chat line by line, without the full-screen UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := NewEngine(viper.GetViper())
			if err != nil {
				return err
			}
			return RunRepl(cmd.Context(), e, os.Stdin, cmd.OutOrStdout(), ReplSettings{
				Theme: ui.ParseTheme(viper.GetString("theme")),
				Plain: !IsOutputTerminal(),
				Width: terminalWidth(),
			})
		},
	}
}

// lineReader hands out at most one line per Read, so that a reader
// recreated on every prompt does not swallow the following lines.
type lineReader struct {
	r       *bufio.Reader
	pending string
	eof     bool
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{r: bufio.NewReader(r)}
}

func (l *lineReader) Read(p []byte) (int, error) {
	if l.pending == "" {
		if l.eof {
			return 0, io.EOF
		}
		line, err := l.r.ReadString('\n')
		if err != nil {
			if err != io.EOF {
				return 0, err
			}
			l.eof = true
			if line == "" {
				return 0, io.EOF
			}
		}
		l.pending = line
	}
	n := copy(p, l.pending)
	l.pending = l.pending[n:]
	return n, nil
}

func (l *lineReader) Exhausted() bool {
	return l.eof && l.pending == ""
}

// RunRepl reads user turns from in until /quit, end of input or an
// interrupt. Each turn waits for its reply before prompting again.
func RunRepl(ctx context.Context, client engine.CompletionClient, in io.Reader, out io.Writer, s ReplSettings) error {
	if ctx == nil {
		ctx = context.Background()
	}

	sess, err := session.NewSession(client, ui.NewWriterNotifier(out, s.Theme))
	if err != nil {
		return err
	}

	reader := newLineReader(in)
	prompter := &input.UI{
		Writer: out,
		Reader: reader,
	}
	renderer := ui.NewRenderer(s.Theme, s.Width, s.Plain)
	style := ui.StylesFor(s.Theme)

	_, _ = fmt.Fprintln(out, style.Heading.Render("How can I help you today?"))
	for i, sug := range ui.DefaultSuggestions {
		_, _ = fmt.Fprintf(out, "  /%d  %s %s\n", i+1, sug.Title, style.SuggestionText.Render(sug.Description))
	}
	_, _ = fmt.Fprintln(out)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		line, err := prompter.Ask(style.UserLabel.Render("You"), &input.Options{
			HideOrder: true,
		})
		if err != nil {
			if errors.Is(err, input.ErrInterrupted) {
				return nil
			}
			return errors.Wrap(err, "failed to read input")
		}

		text := strings.TrimSpace(line)
		if text == "" {
			if reader.Exhausted() {
				return nil
			}
			continue
		}

		switch text {
		case "/quit", "/exit":
			return nil
		case "/help":
			_, _ = fmt.Fprintln(out, replHelp)
			continue
		}

		handle, err := sess.Submit(ctx, turnText(line, len(sess.Transcript()) == 0))
		if err != nil {
			if errors.Is(err, session.ErrPromptEmpty) {
				continue
			}
			return err
		}

		reply, err := handle.Wait()
		if err != nil {
			// the notifier already told the user
			continue
		}
		_, _ = fmt.Fprintln(out, renderer.RenderMessage(reply))
		_, _ = fmt.Fprintln(out)
	}
}

// turnText returns what to submit for line: a starter prompt for "/N" on an
// empty conversation, the line as typed otherwise.
func turnText(line string, empty bool) string {
	if p, ok := pickSuggestion(strings.TrimSpace(line), empty); ok {
		return p
	}
	return line
}

// pickSuggestion maps "/N" to the Nth starter prompt while the conversation
// is still empty.
func pickSuggestion(text string, empty bool) (string, bool) {
	if !empty || !strings.HasPrefix(text, "/") {
		return "", false
	}
	n, err := strconv.Atoi(text[1:])
	if err != nil || n < 1 || n > len(ui.DefaultSuggestions) {
		return "", false
	}
	return ui.DefaultSuggestions[n-1].Prompt(), true
}
