package redis

import (
	"strings"

	"github.com/databridge-io/databridge/pkg/adapter"
	"github.com/databridge-io/databridge/pkg/dbvalue"
)

// buildCommand tokenizes a textual command and appends the positional
// parameters as trailing arguments. Tokens may be quoted with single or
// double quotes to carry embedded spaces.
func buildCommand(text string, params []dbvalue.Value) ([]any, error) {
	tokens, err := tokenize(text)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, adapter.NewValidationError("command", "empty command")
	}

	args := make([]any, 0, len(tokens)+len(params))
	for _, tok := range tokens {
		args = append(args, tok)
	}
	args = append(args, dbvalue.Natives(params)...)
	return args, nil
}

func tokenize(text string) ([]string, error) {
	var tokens []string
	var current strings.Builder
	var quote rune
	inToken := false

	for _, r := range text {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inToken = true
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			if inToken {
				tokens = append(tokens, current.String())
				current.Reset()
				inToken = false
			}
		default:
			current.WriteRune(r)
			inToken = true
		}
	}
	if quote != 0 {
		return nil, adapter.NewValidationError("command", "unterminated quote")
	}
	if inToken {
		tokens = append(tokens, current.String())
	}
	return tokens, nil
}
