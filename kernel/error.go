package kernel

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"go.nhat.io/otelsql/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

// MakeError records err on the current span and leaves it, so the caller
// continues in the parent span.
func (rt *RequestRuntime) MakeError(err error) error {
	s := rt.Span
	s.RecordError(err)
	s.SetStatus(codes.Error, err.Error())
	rt.Error = err
	if rt.Depth() > 1 {
		rt.StepBack()
	}

	return err
}

// E aborts the request with the error body every endpoint uses. message is
// what the client sees; err is what gets recorded.
func (rt *RequestRuntime) E(code int, message string, err error) *RequestRuntime {
	if err == nil {
		err = errors.New(message)
	}
	_ = rt.MakeError(err)

	rt.Span.SetAttributes(attribute.KeyValue("http.status_code", code))
	rt.AppRuntime.Diagnostic.ErrorCounter.Add(rt.SpanContext, 1,
		metric.WithAttributes(attribute.KeyValue("http.route", rt.RequestContext.FullPath())))

	evt := log.Info()
	if code >= 500 {
		evt = log.Error()
	}
	evt.Err(err).Int("status", code).Str("path", rt.RequestContext.Request.URL.Path).Msg("request failed")

	rt.RequestContext.AbortWithStatusJSON(code, gin.H{
		"success": false,
		"error":   message,
		"traceId": rt.TraceID(),
	})
	return rt
}

func (rt *RequestRuntime) Ef(code int, format string, args ...interface{}) *RequestRuntime {
	msg := fmt.Sprintf(format, args...)
	return rt.E(code, msg, nil)
}
