// Package classify builds classification prompts and parses model replies
// into typed results.
package classify

import "slices"

// Allowed values for the categorical fields. The system prompt enumerates
// exactly these, so a reply outside them is a schema violation.
var (
	IntentOptions = []string{
		"Order Status", "Cancel Order", "Return/Refund", "Product Inquiry",
		"Technical Support", "Complaint", "Feedback", "Account/Billing",
		"Shipping", "Other",
	}

	TopicOptions = []string{
		"Orders", "Payments", "Shipping/Delivery", "Returns", "Refunds",
		"Warranty", "Product Info", "Account", "Technical", "General",
	}

	SentimentOptions = []string{"Positive", "Neutral", "Negative"}
)

// ValidIntent reports whether v is one of the enumerated intents.
func ValidIntent(v string) bool { return slices.Contains(IntentOptions, v) }

// ValidTopic reports whether v is one of the enumerated topics.
func ValidTopic(v string) bool { return slices.Contains(TopicOptions, v) }

// ValidSentiment reports whether v is one of the enumerated sentiments.
func ValidSentiment(v string) bool { return slices.Contains(SentimentOptions, v) }

// Message is one turn of the chat request sent to the classification service.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
