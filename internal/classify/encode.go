package classify

import (
	"encoding/json"
	"fmt"

	"github.com/vietddude/classifier/internal/core/domain"
)

// EncodeError marks bad input to the codec. Local, never retried.
type EncodeError struct {
	Reason string
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode classification request: %s", e.Reason)
}

const systemPrompt = `You are a customer-support classifier. Return EXACTLY this JSON structure:
{
  "categorization": "brief text description",
  "intent": "one of the allowed intents",
  "topic": "one of the allowed topics",
  "sentiment": "Positive/Neutral/Negative"
}

CRITICAL: Use DOUBLE QUOTES for ALL strings. Example:
{"categorization": "Order delay issue", "intent": "Order Status", "topic": "Shipping/Delivery", "sentiment": "Negative"}

Allowed intents: "Order Status", "Cancel Order", "Return/Refund", "Product Inquiry",
"Technical Support", "Complaint", "Feedback", "Account/Billing", "Shipping", "Other"

Allowed topics: "Orders", "Payments", "Shipping/Delivery", "Returns", "Refunds",
"Warranty", "Product Info", "Account", "Technical", "General"`

// fewShots are fixed examples appended to every request as user/assistant
// turn pairs.
var fewShots = []struct {
	conversation string
	output       domain.Classification
}{
	{
		conversation: "Customer: Where is my order?\nAgent: Let me check for you.",
		output: domain.Classification{
			Categorization: "Requesting shipping status",
			Intent:         "Order Status",
			Topic:          "Shipping/Delivery",
			Sentiment:      "Neutral",
		},
	},
	{
		conversation: "Customer: I received a damaged product.\nAgent: I'm sorry to hear that. Would you like a replacement or refund?",
		output: domain.Classification{
			Categorization: "Product received damaged",
			Intent:         "Return/Refund",
			Topic:          "Returns",
			Sentiment:      "Negative",
		},
	},
}

// BuildRequest constructs the fixed-shape chat request for one record:
// system instruction, few-shot turns, then the record content.
func BuildRequest(rec *domain.Record) ([]Message, error) {
	if rec == nil {
		return nil, &EncodeError{Reason: "nil record"}
	}
	if rec.ID == 0 {
		return nil, &EncodeError{Reason: "record id is required"}
	}
	if rec.Content == "" {
		return nil, &EncodeError{Reason: "record content is empty"}
	}

	messages := make([]Message, 0, 2+2*len(fewShots))
	messages = append(messages, Message{Role: "system", Content: systemPrompt})

	for _, shot := range fewShots {
		out, err := json.Marshal(shot.output)
		if err != nil {
			return nil, &EncodeError{Reason: fmt.Sprintf("marshal few-shot output: %v", err)}
		}
		messages = append(messages,
			Message{Role: "user", Content: shot.conversation},
			Message{Role: "assistant", Content: string(out)},
		)
	}

	messages = append(messages, Message{
		Role:    "user",
		Content: fmt.Sprintf("Customer Query:\n%s\nReturn ONLY JSON:", rec.Content),
	})
	return messages, nil
}
