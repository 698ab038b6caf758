package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/go-go-golems/banter/cmd/banter/cmds"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

var rootCmd = &cobra.Command{
	Use:   "banter",
	Short: "banter is a terminal chat client for OpenAI-compatible endpoints",
	Long: `banter keeps a single conversation with a chat completion endpoint
(OpenRouter by default). Without a subcommand it opens the full-screen chat
when run in a terminal.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// reinitialize the logger because we can now parse --log-level and co
		// from the command line flag
		initLogger(cmd.Name())
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cmds.IsOutputTerminal() || !cmds.IsInputTerminal() {
			return cmd.Help()
		}
		initLogger("chat")
		return cmds.RunChatCommand(cmd.Context(), viper.GetViper())
	},
}

func initLogger(command string) {
	err := InitLogger(&logConfig{
		Level:      viper.GetString("log-level"),
		LogFile:    viper.GetString("log-file"),
		LogFormat:  viper.GetString("log-format"),
		WithCaller: viper.GetBool("with-caller"),
		// the full-screen UI owns the terminal
		Quiet: command == "chat",
	})
	cobra.CheckErr(err)
}

type logConfig struct {
	WithCaller bool
	Level      string
	LogFormat  string
	LogFile    string
	Quiet      bool
}

func initCommands(rootCmd *cobra.Command, configPath string) error {
	viper.SetEnvPrefix("banter")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.banter")

		xdgConfigPath, err := os.UserConfigDir()
		if err == nil {
			viper.AddConfigPath(xdgConfigPath + "/banter")
		}
	}

	err := viper.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		// Config file not found; ignore error
	} else if err != nil {
		return err
	}
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	// OPENROUTER_API_KEY is accepted as well, for people who already have it set
	if err := viper.BindEnv("api-key", "BANTER_API_KEY", "OPENROUTER_API_KEY"); err != nil {
		return err
	}

	err = viper.BindPFlags(rootCmd.PersistentFlags())
	if err != nil {
		return err
	}

	initLogger("")

	log.Debug().
		Str("config", viper.ConfigFileUsed()).
		Msg("Loaded configuration")

	return nil
}

func InitLogger(config *logConfig) error {
	log.Logger = newLogger(config, os.Stderr)

	switch config.Level {
	case "trace":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "fatal":
		zerolog.SetGlobalLevel(zerolog.FatalLevel)
	}

	return nil
}

// newLogger builds a fresh logger and never derives from log.Logger, since
// InitLogger runs more than once per invocation.
func newLogger(config *logConfig, stderr io.Writer) zerolog.Logger {
	var logWriter io.Writer
	switch {
	case config.Quiet:
		logWriter = io.Discard
	case config.LogFormat == "json":
		logWriter = stderr
	default:
		logWriter = zerolog.ConsoleWriter{Out: stderr}
	}

	if config.LogFile != "" {
		logWriter = io.MultiWriter(
			logWriter,
			zerolog.ConsoleWriter{
				NoColor: true,
				Out: &lumberjack.Logger{
					Filename:   config.LogFile,
					MaxSize:    10, // megabytes
					MaxBackups: 3,
					MaxAge:     28, //days
				},
			})
	}

	ctx := zerolog.New(logWriter).With().Timestamp()
	if config.WithCaller {
		ctx = ctx.Caller()
	}
	return ctx.Logger()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().Bool("with-caller", false, "Log caller")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (trace, debug, info, warn, error, fatal)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format (json, text)")
	rootCmd.PersistentFlags().String("log-file", "", "Log file (default: stderr)")

	rootCmd.PersistentFlags().String("config", "", "Path to config file (default ~/.config/banter/config.yaml)")

	rootCmd.PersistentFlags().String("api-key", "", "API key for the completion endpoint")
	rootCmd.PersistentFlags().String("base-url", "", "Base URL of the OpenAI-compatible API")
	rootCmd.PersistentFlags().String("model", "", "Model identifier")
	rootCmd.PersistentFlags().String("referer", "", "Value of the HTTP-Referer header")
	rootCmd.PersistentFlags().String("title", "", "Value of the X-Title header")
	rootCmd.PersistentFlags().Duration("timeout", 0, "Request timeout (default 60s)")
	rootCmd.PersistentFlags().String("theme", "dark", "Color theme (dark, light)")

	// parse the flags one time just to catch --config
	configFile := ""
	for idx, arg := range os.Args {
		if arg == "--config" {
			if len(os.Args) > idx+1 {
				configFile = os.Args[idx+1]
			}
		} else if strings.HasPrefix(arg, "--config=") {
			configFile = strings.TrimPrefix(arg, "--config=")
		}
	}

	err := initCommands(rootCmd, configFile)
	if err != nil {
		panic(err)
	}

	rootCmd.AddCommand(
		cmds.NewChatCommand(),
		cmds.NewReplCommand(),
		cmds.NewAskCommand(),
		cmds.NewSuggestionsCommand(),
	)
}
