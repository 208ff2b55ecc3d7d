package runner

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/attestify/evload/internal/httpclient"
)

// Class is the retry classification of an outcome.
type Class int

const (
	// ClassSuccess is any 2xx response.
	ClassSuccess Class = iota
	// ClassTransient marks the overloaded-manifest signature worth retrying.
	ClassTransient
	// ClassTerminal is every other outcome, including transport errors.
	ClassTerminal
)

func (c Class) String() string {
	switch c {
	case ClassSuccess:
		return "success"
	case ClassTransient:
		return "transient"
	default:
		return "terminal"
	}
}

// Classifier decides which outcomes count as transient contention.
//
// The service sometimes reports an overloaded manifest as 422 with a message
// mentioning both "429" and "manifest" instead of a plain 429. Matching on the
// message text is brittle; if the service changes its wording these outcomes
// become terminal failures.
type Classifier struct {
	RateLimitedStatus   int
	UnprocessableStatus int
	RateLimitMarker     string
	ContentionMarker    string
}

// DefaultClassifier matches 429, and 422 carrying "429" and "manifest".
func DefaultClassifier() Classifier {
	return Classifier{
		RateLimitedStatus:   http.StatusTooManyRequests,
		UnprocessableStatus: http.StatusUnprocessableEntity,
		RateLimitMarker:     "429",
		ContentionMarker:    "manifest",
	}
}

func (c Classifier) withDefaults() Classifier {
	d := DefaultClassifier()
	if c.RateLimitedStatus == 0 {
		c.RateLimitedStatus = d.RateLimitedStatus
	}
	if c.UnprocessableStatus == 0 {
		c.UnprocessableStatus = d.UnprocessableStatus
	}
	if c.RateLimitMarker == "" {
		c.RateLimitMarker = d.RateLimitMarker
	}
	if c.ContentionMarker == "" {
		c.ContentionMarker = d.ContentionMarker
	}
	return c
}

// Classify returns the class of out. Zero-valued fields fall back to
// DefaultClassifier.
func (c Classifier) Classify(out httpclient.Outcome) Class {
	c = c.withDefaults()
	switch {
	case out.OK():
		return ClassSuccess
	case out.Status == c.RateLimitedStatus:
		return ClassTransient
	case out.Status == c.UnprocessableStatus:
		msg := strings.ToLower(ResponseMessage(out.Body))
		if strings.Contains(msg, strings.ToLower(c.RateLimitMarker)) &&
			strings.Contains(msg, strings.ToLower(c.ContentionMarker)) {
			return ClassTransient
		}
	}
	return ClassTerminal
}

// ResponseMessage returns the "message" field of a JSON body, or the raw body
// when it is not JSON or has no such string field.
func ResponseMessage(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && gjson.ValidBytes(trimmed) {
		if msg := gjson.GetBytes(trimmed, "message"); msg.Type == gjson.String {
			return msg.Str
		}
	}
	return string(body)
}
