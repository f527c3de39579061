package retry

import (
	"context"
	"errors"
	"net"
	"strings"
)

// Category determines how an error should be handled by the invoker.
type Category string

const (
	// CategoryTransient covers network-shaped failures: timeouts, dropped
	// connections, 5xx responses. Retried with backoff.
	CategoryTransient Category = "transient"

	// CategoryResource covers rate limits, quota and overload responses.
	// Retried with backoff.
	CategoryResource Category = "resource"

	// CategoryPermanent covers auth and validation failures. Never retried.
	CategoryPermanent Category = "permanent"
)

// Fixed keyword tables. Classification must stay deterministic: a given
// error string always maps to the same category.
var (
	permanentKeywords = []string{
		"unauthorized", "forbidden", "authentication", "permission",
		"bad request", "invalid", "not found", "syntax error",
		"401", "403", "400", "404",
	}
	resourceKeywords = []string{
		"rate limit", "too many requests", "quota", "capacity",
		"overloaded", "plan limit", "429",
	}
	transientKeywords = []string{
		"timeout", "timed out", "connection", "network", "refused",
		"unavailable", "reset", "broken pipe", "eof",
		"500", "502", "503", "504",
	}
)

// Classify maps an error to a retry category.
//
// Precedence: typed checks (context deadline, net.Error timeouts) first,
// then permanent, resource and transient keyword tables. Anything
// unrecognized defaults to transient so possibly-recoverable work is not
// silently dropped.
func Classify(err error) Category {
	if err == nil {
		return CategoryTransient
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CategoryTransient
	}

	s := strings.ToLower(err.Error())

	for _, kw := range permanentKeywords {
		if strings.Contains(s, kw) {
			return CategoryPermanent
		}
	}
	for _, kw := range resourceKeywords {
		if strings.Contains(s, kw) {
			return CategoryResource
		}
	}
	for _, kw := range transientKeywords {
		if strings.Contains(s, kw) {
			return CategoryTransient
		}
	}

	return CategoryTransient
}
