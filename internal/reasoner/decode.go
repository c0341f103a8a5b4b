package reasoner

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Decode parses a JSON completion into v and validates its struct tags.
// Markdown code fences and prose around the outermost object are tolerated.
// Failures are *Error with KindMalformed.
func Decode(text string, v any) error {
	body := extractObject(text)
	if body == "" {
		return &Error{Kind: KindMalformed, Err: fmt.Errorf("no JSON object in completion")}
	}
	if err := json.Unmarshal([]byte(body), v); err != nil {
		return &Error{Kind: KindMalformed, Err: fmt.Errorf("decode completion: %w", err)}
	}
	if err := validate.Struct(v); err != nil {
		return &Error{Kind: KindMalformed, Err: fmt.Errorf("validate completion: %w", err)}
	}
	return nil
}

func extractObject(text string) string {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
