package settings

import (
	"net/http"
	"time"

	"github.com/go-go-golems/banter/pkg/helpers"
	"github.com/huandu/go-clone"
	"gopkg.in/yaml.v3"
)

type ClientSettings struct {
	Timeout        *time.Duration `yaml:"timeout,omitempty"`
	TimeoutSeconds *int           `yaml:"timeout_second,omitempty"`
	UserAgent      *string        `yaml:"user_agent,omitempty"`
	HTTPClient     *http.Client   `yaml:"-" json:"-"`
}

// UnmarshalYAML overrides YAML parsing to convert time.duration from int
func (cs *ClientSettings) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Timeout        *int    `yaml:"timeout,omitempty"`
		TimeoutSeconds *int    `yaml:"timeout_second,omitempty"`
		UserAgent      *string `yaml:"user_agent,omitempty"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	switch {
	case raw.Timeout != nil:
		cs.SetTimeout(time.Duration(*raw.Timeout) * time.Second)
	case raw.TimeoutSeconds != nil:
		cs.SetTimeout(time.Duration(*raw.TimeoutSeconds) * time.Second)
	}
	if raw.UserAgent != nil {
		cs.UserAgent = raw.UserAgent
	}
	return nil
}

// SetTimeout keeps Timeout and TimeoutSeconds in sync.
func (cs *ClientSettings) SetTimeout(d time.Duration) {
	cs.Timeout = helpers.ToPtr(d)
	cs.TimeoutSeconds = helpers.ToPtr(int(d.Seconds()))
}

// Clone deep-copies the settings but shares the HTTP client.
func (cs *ClientSettings) Clone() *ClientSettings {
	shallow := *cs
	shallow.HTTPClient = nil
	ret := clone.Clone(&shallow).(*ClientSettings)
	ret.HTTPClient = cs.HTTPClient
	return ret
}

const DefaultTimeout = 60 * time.Second

func NewClientSettings() *ClientSettings {
	ret := &ClientSettings{}
	ret.SetTimeout(DefaultTimeout)
	return ret
}
