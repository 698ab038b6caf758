package cmds

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-go-golems/banter/pkg/conversation"
	"github.com/go-go-golems/banter/pkg/events"
	"github.com/go-go-golems/banter/pkg/helpers"
	"github.com/go-go-golems/banter/pkg/inference"
	"github.com/go-go-golems/banter/pkg/inference/engine"
	"github.com/go-go-golems/banter/pkg/inference/session"
	"github.com/go-go-golems/banter/pkg/ui"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

// MessageCounter estimates the token size of a conversation.
type MessageCounter interface {
	CountMessages(messages []conversation.Message) (int, error)
}

type AskSettings struct {
	Output      string
	PrintEvents bool
	Verbose     bool
	Plain       bool
	Theme       ui.Theme
	// Tokens is only consulted when non-nil.
	Tokens MessageCounter
}

type askResult struct {
	SessionID       string                 `json:"session_id" yaml:"session_id"`
	Messages        []conversation.Message `json:"messages" yaml:"messages"`
	FailedExchanges int                    `json:"failed_exchanges" yaml:"failed_exchanges"`
	Tokens          int                    `json:"tokens,omitempty" yaml:"tokens,omitempty"`
}

func NewAskCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [prompts...]",
		Short: "Send prompts one after another in a single conversation and print the transcript",
		Long: `Send each prompt as the next user turn of one conversation, waiting for the
reply before sending the next one. Without arguments, prompts are read from
stdin, one per line.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			prompts := args
			if len(prompts) == 0 {
				var err error
				prompts, err = ReadPrompts(cmd.InOrStdin())
				if err != nil {
					return err
				}
			}
			if len(prompts) == 0 {
				return errors.New("no prompts given")
			}

			e, err := NewEngine(viper.GetViper())
			if err != nil {
				return err
			}

			output, _ := cmd.Flags().GetString("output")
			printEvents, _ := cmd.Flags().GetBool("print-events")
			verbose, _ := cmd.Flags().GetBool("verbose")
			stats, _ := cmd.Flags().GetBool("stats")

			s := AskSettings{
				Output:      output,
				PrintEvents: printEvents,
				Verbose:     verbose,
				Plain:       !IsOutputTerminal(),
				Theme:       ui.ParseTheme(viper.GetString("theme")),
			}
			if stats && e.Tokens() != nil {
				s.Tokens = e.Tokens()
			}

			return RunAsk(cmd.Context(), e, prompts, cmd.OutOrStdout(), cmd.ErrOrStderr(), s)
		},
	}
	cmd.Flags().StringP("output", "o", OutputText, "Output format (text, json, yaml)")
	cmd.Flags().Bool("print-events", false, "Print session events to stderr as they happen")
	cmd.Flags().Bool("verbose", false, "Keep event metadata in --print-events output (json and yaml only)")
	cmd.Flags().Bool("stats", false, "Include an approximate token count of the final conversation")
	return cmd
}

// ReadPrompts returns the non-blank lines of r as they were written.
func ReadPrompts(r io.Reader) ([]string, error) {
	var prompts []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if strings.TrimSpace(line) != "" {
			prompts = append(prompts, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read prompts")
	}
	return prompts, nil
}

// RunAsk submits prompts in order on a fresh session and writes the final
// transcript to out. Failures are reported on errOut as they happen and the
// remaining prompts are still sent; a non-nil error is returned if any
// exchange failed.
func RunAsk(
	ctx context.Context,
	client engine.CompletionClient,
	prompts []string,
	out io.Writer,
	errOut io.Writer,
	s AskSettings,
) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.Output == "" {
		s.Output = OutputText
	}
	if err := checkOutputFormat(s.Output); err != nil {
		return err
	}

	var sink inference.EventSink = inference.NewNullSink()
	var router *events.EventRouter
	if s.PrintEvents {
		var err error
		router, err = events.NewEventRouter(
			events.WithLogger(helpers.NewWatermill(log.Logger)),
			events.WithVerbose(s.Verbose),
		)
		if err != nil {
			return errors.Wrap(err, "failed to create event router")
		}
		defer func() {
			_ = router.Close()
		}()
		if s.Output == OutputText {
			router.AddHandler("print-events", events.TopicChat, events.StepPrinterFunc("", errOut))
		} else {
			router.AddHandler("print-events", events.TopicChat, router.DumpRawEvents(errOut))
		}
		sink = inference.NewWatermillSink(router.Publisher, events.TopicChat)
	}

	sess, err := session.NewSession(client, ui.NewWriterNotifier(errOut, s.Theme), session.WithEventSink(sink))
	if err != nil {
		return err
	}

	failed := 0
	run := func(ctx context.Context) error {
		for _, p := range prompts {
			handle, err := sess.Submit(ctx, p)
			if err != nil {
				if errors.Is(err, session.ErrPromptEmpty) {
					continue
				}
				return err
			}
			if _, err := handle.Wait(); err != nil {
				failed++
				log.Debug().Err(err).Str("prompt", p).Msg("Exchange failed")
			}
		}
		return nil
	}

	if router == nil {
		err = run(ctx)
	} else {
		eg := errgroup.Group{}
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		eg.Go(func() error {
			defer cancel()
			return router.Run(ctx)
		})
		eg.Go(func() error {
			defer cancel()
			<-router.Running()
			return run(ctx)
		})
		err = eg.Wait()
	}
	if err != nil {
		return err
	}

	result := askResult{
		SessionID:       sess.SessionID,
		Messages:        sess.Transcript(),
		FailedExchanges: failed,
	}
	if s.Tokens != nil {
		n, err := s.Tokens.CountMessages(result.Messages)
		if err != nil {
			log.Warn().Err(err).Msg("Could not count tokens")
		} else {
			result.Tokens = n
		}
	}

	if err := writeAskResult(out, result, s); err != nil {
		return err
	}

	if failed > 0 {
		return errors.Errorf("%d of %d exchanges failed", failed, len(prompts))
	}
	return nil
}

func writeAskResult(w io.Writer, result askResult, s AskSettings) error {
	if s.Output != OutputText {
		return writeStructured(w, s.Output, result)
	}

	r := ui.NewRenderer(s.Theme, terminalWidth(), s.Plain)
	if _, err := fmt.Fprintln(w, r.RenderTranscript(result.Messages)); err != nil {
		return err
	}
	if result.Tokens > 0 {
		if _, err := fmt.Fprintf(w, "\n~%d tokens\n", result.Tokens); err != nil {
			return err
		}
	}
	return nil
}

// terminalWidth reads COLUMNS, which most shells export.
func terminalWidth() int {
	var w int
	if _, err := fmt.Sscanf(os.Getenv("COLUMNS"), "%d", &w); err != nil || w <= 0 {
		return 0
	}
	return w
}
