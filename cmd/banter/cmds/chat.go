package cmds

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
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

func NewChatCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Open the full-screen chat",
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunChatCommand(cmd.Context(), viper.GetViper())
		},
	}
}

// RunChatCommand is also what the root command runs when stdout is a terminal.
func RunChatCommand(ctx context.Context, v *viper.Viper) error {
	e, err := NewEngine(v)
	if err != nil {
		return err
	}
	return RunChat(ctx, e, ui.ParseTheme(v.GetString("theme")), !IsOutputTerminal())
}

// RunChat wires a session to the TUI through the event router: the session
// publishes onto a watermill gochannel, and a router handler forwards every
// event into the bubbletea program.
func RunChat(ctx context.Context, client engine.CompletionClient, theme ui.Theme, plain bool) error {
	if ctx == nil {
		ctx = context.Background()
	}

	router, err := events.NewEventRouter(events.WithLogger(helpers.NewWatermill(log.Logger)))
	if err != nil {
		return errors.Wrap(err, "failed to create event router")
	}
	defer func() {
		_ = router.Close()
	}()

	notifier := ui.NewProgramNotifier()
	sess, err := session.NewSession(
		client,
		notifier,
		session.WithEventSink(inference.NewWatermillSink(router.Publisher, events.TopicChat)),
	)
	if err != nil {
		return err
	}
	log.Debug().Str("session_id", sess.SessionID).Msg("Starting chat")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := ui.NewModel(sess,
		ui.WithContext(ctx),
		ui.WithTheme(theme),
		ui.WithPlainRendering(plain),
	)
	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	notifier.SetSender(p)
	router.AddEventHandler("ui-forward", events.TopicChat, ui.SessionEventForwardFunc(p))

	eg := errgroup.Group{}

	eg.Go(func() error {
		defer cancel()
		return router.Run(ctx)
	})

	eg.Go(func() error {
		defer cancel()
		<-router.Running()

		_, err := p.Run()
		if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return errors.Wrap(err, "chat UI failed")
		}
		return nil
	})

	return eg.Wait()
}
