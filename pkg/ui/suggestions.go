package ui

import "fmt"

// Suggestion is a canned starter prompt offered on an empty conversation.
type Suggestion struct {
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
}

// Prompt is the text submitted when the suggestion is picked.
func (s Suggestion) Prompt() string {
	return fmt.Sprintf("%s: %s", s.Title, s.Description)
}

var DefaultSuggestions = []Suggestion{
	{Title: "Suggest fun activities", Description: "to help me make friends in a new city"},
	{Title: "Help me study", Description: "vocabulary for an exam"},
	{Title: "Write a thank-you note", Description: "to my interviewer"},
	{Title: "Create an illustration", Description: "for a bakery"},
}
