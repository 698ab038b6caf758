package cmds

import (
	"encoding/json"
	"io"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"
)

func checkOutputFormat(format string) error {
	switch format {
	case OutputText, OutputJSON, OutputYAML:
		return nil
	default:
		return errors.Errorf("unknown output format %q (expected text, json or yaml)", format)
	}
}

// writeStructured encodes v as json or yaml.
func writeStructured(w io.Writer, format string, v interface{}) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(v), "failed to encode json")
	case OutputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return errors.Wrap(err, "failed to encode yaml")
		}
		return errors.Wrap(enc.Close(), "failed to encode yaml")
	default:
		return errors.Errorf("%s is not a structured output format", format)
	}
}
