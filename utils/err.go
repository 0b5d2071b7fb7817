package utils

import (
	"fmt"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const maxRecordedBody = 512

// SpanErr records err on span and marks it failed. The span is left open,
// callers end it with defer.
func SpanErr(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func SpanErrf(span trace.Span, format string, args ...interface{}) error {
	return SpanErr(span, fmt.Errorf(format, args...))
}

// SpanHttpErr records a non-OK upstream response, keeping at most
// maxRecordedBody bytes of its body, and returns err.
func SpanHttpErr(span trace.Span, status int, body []byte, err error) error {
	if len(body) > maxRecordedBody {
		body = body[:maxRecordedBody]
	}
	span.RecordError(fmt.Errorf("http request returned %d: %s", status, string(body)))
	span.SetStatus(codes.Error, err.Error())
	return err
}
