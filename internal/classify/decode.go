package classify

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vietddude/classifier/internal/core/domain"
)

// DecodeError marks a reply the service produced but we could not turn into
// a Classification. Raw preserves the original text for diagnostics. The
// message deliberately omits Raw so error classification stays driven by
// the decode failure itself, not by whatever the model happened to say.
type DecodeError struct {
	Reason string
	Raw    string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("malformed model reply: %s", e.Reason)
}

// ParseResponse extracts a Classification from the model's text content.
//
// It first attempts a strict JSON parse. If that fails it locates the
// outermost {...} span within the text and parses only that substring,
// since models often wrap the payload in prose. Both success and failure
// are return values; this never panics.
func ParseResponse(content string) (domain.Classification, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return domain.Classification{}, &DecodeError{Reason: "empty content"}
	}

	var c domain.Classification
	if err := json.Unmarshal([]byte(content), &c); err == nil {
		return validate(c, content)
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || end <= start {
		return domain.Classification{}, &DecodeError{Reason: "no JSON object in content", Raw: content}
	}

	if err := json.Unmarshal([]byte(content[start:end+1]), &c); err != nil {
		return domain.Classification{}, &DecodeError{Reason: "JSON substring does not parse", Raw: content}
	}
	return validate(c, content)
}

func validate(c domain.Classification, raw string) (domain.Classification, error) {
	var missing []string
	if c.Intent == "" {
		missing = append(missing, "intent")
	}
	if c.Topic == "" {
		missing = append(missing, "topic")
	}
	if c.Sentiment == "" {
		missing = append(missing, "sentiment")
	}
	if len(missing) > 0 {
		return domain.Classification{}, &DecodeError{
			Reason: fmt.Sprintf("missing fields: %s", strings.Join(missing, ", ")),
			Raw:    raw,
		}
	}
	if !ValidSentiment(c.Sentiment) {
		return domain.Classification{}, &DecodeError{
			Reason: "sentiment outside allowed values",
			Raw:    raw,
		}
	}
	return c, nil
}
