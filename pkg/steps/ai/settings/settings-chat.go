package settings

import (
	"github.com/huandu/go-clone"
)

type ChatSettings struct {
	// Engine is the model identifier sent with every request.
	Engine *string `yaml:"engine,omitempty"`
}

func NewChatSettings() *ChatSettings {
	return &ChatSettings{}
}

func (s *ChatSettings) Clone() *ChatSettings {
	return clone.Clone(s).(*ChatSettings)
}

