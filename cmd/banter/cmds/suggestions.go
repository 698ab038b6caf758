package cmds

import (
	"fmt"
	"io"

	"github.com/go-go-golems/banter/pkg/ui"
	"github.com/spf13/cobra"
)

func NewSuggestionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suggestions",
		Short: "List the starter prompts shown on an empty conversation",
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			return PrintSuggestions(cmd.OutOrStdout(), ui.DefaultSuggestions, output)
		},
	}
	cmd.Flags().StringP("output", "o", OutputText, "Output format (text, json, yaml)")
	return cmd
}

func PrintSuggestions(w io.Writer, suggestions []ui.Suggestion, format string) error {
	if err := checkOutputFormat(format); err != nil {
		return err
	}
	if format != OutputText {
		return writeStructured(w, format, suggestions)
	}
	for i, s := range suggestions {
		if _, err := fmt.Fprintf(w, "%d. %s\n", i+1, s.Prompt()); err != nil {
			return err
		}
	}
	return nil
}
