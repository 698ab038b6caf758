package cmds

import (
	"os"

	"github.com/go-go-golems/banter/pkg/steps/ai/openai"
	"github.com/go-go-golems/banter/pkg/steps/ai/settings"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// LoadStepSettings overlays flags, BANTER_* environment variables and the
// config file on top of the built-in defaults.
func LoadStepSettings(v *viper.Viper) (*settings.StepSettings, error) {
	s, err := settings.NewStepSettings()
	if err != nil {
		return nil, err
	}
	if err := s.UpdateFromViper(v); err != nil {
		return nil, err
	}

	log.Debug().Fields(s.GetMetadata()).Msg("Loaded step settings")
	return s, nil
}

func NewEngine(v *viper.Viper) (*openai.OpenAIEngine, error) {
	s, err := LoadStepSettings(v)
	if err != nil {
		return nil, err
	}
	e, err := openai.NewOpenAIEngine(s)
	if err != nil {
		if errors.Is(err, settings.ErrMissingAPIKey) {
			return nil, errors.Wrap(err, "set --api-key, BANTER_API_KEY or OPENROUTER_API_KEY")
		}
		return nil, err
	}
	return e, nil
}

func IsOutputTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

func IsInputTerminal() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
}
