package settings

import (
	"github.com/huandu/go-clone"
)

// APISettings describes the OpenAI-compatible endpoint and how the client
// identifies itself to it.
type APISettings struct {
	APIKey  *string `yaml:"api_key,omitempty"`
	BaseURL *string `yaml:"base_url,omitempty"`
	// Referer and Title are sent as HTTP-Referer and X-Title, which
	// OpenRouter uses to attribute requests to an application.
	Referer *string `yaml:"referer,omitempty"`
	Title   *string `yaml:"title,omitempty"`
}

func NewAPISettings() *APISettings {
	return &APISettings{}
}

func (s *APISettings) Clone() *APISettings {
	return clone.Clone(s).(*APISettings)
}

