package settings

import (
	"bytes"
	_ "embed"
	"io"
	"net/url"
	"time"

	"github.com/go-go-golems/banter/pkg/helpers"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var (
	ErrMissingAPIKey  = errors.New("missing api key")
	ErrMissingModel   = errors.New("missing model")
	ErrMissingBaseURL = errors.New("missing base url")
)

//go:embed default-settings.yaml
var defaultSettingsYAML []byte

type factoryConfigFileWrapper struct {
	Factories *StepSettings
}

type StepSettings struct {
	Chat   *ChatSettings   `yaml:"chat,omitempty"`
	API    *APISettings    `yaml:"api,omitempty"`
	Client *ClientSettings `yaml:"client,omitempty"`
}

// NewStepSettings returns the built-in defaults (OpenRouter endpoint,
// default model, 60s timeout). The API key is always left empty.
func NewStepSettings() (*StepSettings, error) {
	return NewStepSettingsFromYAML(bytes.NewReader(defaultSettingsYAML))
}

func NewStepSettingsFromYAML(s io.Reader) (*StepSettings, error) {
	settings_ := factoryConfigFileWrapper{
		Factories: &StepSettings{
			Chat:   NewChatSettings(),
			API:    NewAPISettings(),
			Client: NewClientSettings(),
		},
	}
	if err := yaml.NewDecoder(s).Decode(&settings_); err != nil {
		return nil, errors.Wrap(err, "could not decode step settings")
	}

	return settings_.Factories, nil
}

// UpdateFromViper overlays every key that was explicitly set (flag, env or
// config file) on top of the current values.
func (ss *StepSettings) UpdateFromViper(v *viper.Viper) error {
	setString := func(key string, dst **string) {
		if v.IsSet(key) {
			*dst = helpers.ToPtr(v.GetString(key))
		}
	}

	setString("api-key", &ss.API.APIKey)
	setString("base-url", &ss.API.BaseURL)
	setString("referer", &ss.API.Referer)
	setString("title", &ss.API.Title)
	setString("model", &ss.Chat.Engine)

	if v.IsSet("timeout") {
		d := v.GetDuration("timeout")
		if d <= 0 {
			return errors.Errorf("invalid timeout %q", v.GetString("timeout"))
		}
		ss.Client.SetTimeout(d)
	}

	return nil
}

// Validate checks the settings needed to build a completion client.
func (ss *StepSettings) Validate() error {
	if ss.API == nil || ss.API.APIKey == nil || *ss.API.APIKey == "" {
		return ErrMissingAPIKey
	}
	if ss.API.BaseURL == nil || *ss.API.BaseURL == "" {
		return ErrMissingBaseURL
	}
	u, err := url.Parse(*ss.API.BaseURL)
	if err != nil {
		return errors.Wrapf(err, "invalid base url %q", *ss.API.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.Errorf("invalid base url %q: scheme must be http or https", *ss.API.BaseURL)
	}
	if ss.Chat == nil || ss.Chat.Engine == nil || *ss.Chat.Engine == "" {
		return ErrMissingModel
	}
	if ss.Client != nil && ss.Client.Timeout != nil && *ss.Client.Timeout <= 0 {
		return errors.Errorf("invalid timeout %s", ss.Client.Timeout.String())
	}
	return nil
}

// GetTimeout returns the configured request timeout, or DefaultTimeout.
func (ss *StepSettings) GetTimeout() time.Duration {
	if ss.Client == nil || ss.Client.Timeout == nil {
		return DefaultTimeout
	}
	return *ss.Client.Timeout
}

// GetMetadata is used for debug logging. The API key is never included.
func (ss *StepSettings) GetMetadata() map[string]interface{} {
	metadata := make(map[string]interface{})

	if ss.Chat != nil && ss.Chat.Engine != nil {
		metadata["ai-engine"] = *ss.Chat.Engine
	}

	if ss.API != nil {
		if ss.API.BaseURL != nil {
			metadata["base-url"] = *ss.API.BaseURL
		}
		if ss.API.Referer != nil {
			metadata["referer"] = *ss.API.Referer
		}
		if ss.API.Title != nil {
			metadata["title"] = *ss.API.Title
		}
		metadata["api-key-set"] = ss.API.APIKey != nil && *ss.API.APIKey != ""
	}

	if ss.Client != nil {
		if ss.Client.Timeout != nil {
			metadata["timeout"] = ss.Client.Timeout.String()
		}
		if ss.Client.UserAgent != nil {
			metadata["user-agent"] = *ss.Client.UserAgent
		}
	}

	return metadata
}

func (ss *StepSettings) Clone() *StepSettings {
	return &StepSettings{
		Chat:   ss.Chat.Clone(),
		API:    ss.API.Clone(),
		Client: ss.Client.Clone(),
	}
}
