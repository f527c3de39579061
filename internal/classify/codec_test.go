package classify

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/vietddude/classifier/internal/core/domain"
)

func testRecord() *domain.Record {
	return &domain.Record{
		ID:                 17,
		ConversationNumber: "conv-17",
		Content:            "Customer: My package never arrived.\nAgent: Let me look into that.",
		Status:             domain.RecordStatusPending,
	}
}

func TestBuildRequestShape(t *testing.T) {
	messages, err := BuildRequest(testRecord())
	if err != nil {
		t.Fatalf("BuildRequest failed: %v", err)
	}

	// system + 2 few-shot pairs + user query
	if len(messages) != 6 {
		t.Fatalf("expected 6 messages, got %d", len(messages))
	}
	if messages[0].Role != "system" {
		t.Errorf("first message role = %q, want system", messages[0].Role)
	}
	if !strings.Contains(messages[0].Content, `"sentiment"`) {
		t.Error("system prompt does not state the output schema")
	}

	last := messages[len(messages)-1]
	if last.Role != "user" {
		t.Errorf("last message role = %q, want user", last.Role)
	}
	if !strings.Contains(last.Content, "My package never arrived") {
		t.Error("record content missing from final user turn")
	}

	// few-shot assistant turns must themselves decode
	for i, m := range messages {
		if m.Role != "assistant" {
			continue
		}
		if _, err := ParseResponse(m.Content); err != nil {
			t.Errorf("few-shot assistant turn %d does not parse: %v", i, err)
		}
	}
}

func TestBuildRequestRejectsEmptyInput(t *testing.T) {
	tests := []struct {
		name string
		rec  *domain.Record
	}{
		{"nil record", nil},
		{"zero id", &domain.Record{Content: "hello"}},
		{"empty content", &domain.Record{ID: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildRequest(tt.rec)
			var encErr *EncodeError
			if !errors.As(err, &encErr) {
				t.Errorf("expected EncodeError, got %v", err)
			}
		})
	}
}

func TestParseResponseStrict(t *testing.T) {
	got, err := ParseResponse(`{"categorization":"Late delivery","intent":"Order Status","topic":"Shipping/Delivery","sentiment":"Negative"}`)
	if err != nil {
		t.Fatalf("ParseResponse failed: %v", err)
	}
	if got.Intent != "Order Status" || got.Sentiment != "Negative" {
		t.Errorf("unexpected classification: %+v", got)
	}
}

func TestParseResponseRecoversEmbeddedJSON(t *testing.T) {
	content := "Sure! Here is the classification:\n" +
		`{"categorization":"Refund request","intent":"Return/Refund","topic":"Refunds","sentiment":"Neutral"}` +
		"\nLet me know if you need anything else."

	got, err := ParseResponse(content)
	if err != nil {
		t.Fatalf("ParseResponse failed: %v", err)
	}
	if got.Intent != "Return/Refund" || got.Topic != "Refunds" {
		t.Errorf("unexpected classification: %+v", got)
	}
}

func TestParseResponseFailures(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty", ""},
		{"whitespace", "   \n  "},
		{"no json", "I could not classify this conversation."},
		{"broken json", `{"intent": "Order Status", "topic":`},
		{"missing fields", `{"categorization":"something"}`},
		{"bad sentiment", `{"intent":"Other","topic":"General","sentiment":"Angry"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseResponse(tt.content)
			var decErr *DecodeError
			if !errors.As(err, &decErr) {
				t.Fatalf("expected DecodeError, got %v", err)
			}
			if tt.content != "" && strings.Contains(tt.content, "{") && decErr.Raw == "" {
				t.Error("DecodeError does not preserve raw content")
			}
		})
	}
}

// Round-trip: a valid classification marshaled as a reply parses back equal.
func TestParseResponseRoundTrip(t *testing.T) {
	for _, intent := range IntentOptions {
		for _, sentiment := range SentimentOptions {
			orig := domain.Classification{
				Categorization: "round trip check",
				Intent:         intent,
				Topic:          "General",
				Sentiment:      sentiment,
			}
			raw, err := json.Marshal(orig)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}

			got, err := ParseResponse(string(raw))
			if err != nil {
				t.Fatalf("ParseResponse(%s) failed: %v", raw, err)
			}
			if got != orig {
				t.Errorf("round trip mismatch: got %+v, want %+v", got, orig)
			}
		}
	}
}
