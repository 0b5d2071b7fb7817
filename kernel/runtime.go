package kernel

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

const RuntimeKey = "rt"

type spanCtxPair struct {
	span trace.Span
	ctx  context.Context
}

// RequestRuntime carries the span stack of one request. Handlers step into
// a child span for each unit of work and step back when it is done; the
// current span is the one errors get recorded on.
type RequestRuntime struct {
	AppRuntime *AppRuntime

	// Identity is the authenticated user id, set by the auth middleware.
	Identity string

	RequestContext *gin.Context
	Span           trace.Span
	SpanContext    context.Context

	Error error

	pairs []*spanCtxPair
}

func InitRequest(art *AppRuntime, rctx *gin.Context) *RequestRuntime {
	span, ctx := art.Diagnostic.BeginTracing(rctx.Request.Context(), "request "+rctx.FullPath())

	log.Debug().
		Str("method", rctx.Request.Method).
		Str("path", rctx.Request.URL.Path).
		Str("trace_id", span.SpanContext().TraceID().String()).
		Msg("initializing request")

	rt := &RequestRuntime{
		AppRuntime:     art,
		RequestContext: rctx,
		Span:           span,
		SpanContext:    ctx,
	}
	rt.pairs = append(rt.pairs, &spanCtxPair{span: span, ctx: ctx})

	return rt
}

// FromContext returns the runtime the tracer middleware stored on c.
func FromContext(c *gin.Context) *RequestRuntime {
	v, ok := c.Get(RuntimeKey)
	if !ok {
		return nil
	}
	rt, _ := v.(*RequestRuntime)
	return rt
}

func (rt *RequestRuntime) StepInto(spanName string) *RequestRuntime {
	ctx, span := rt.AppRuntime.Diagnostic.Tracer.Start(rt.SpanContext, spanName)
	rt.pairs = append(rt.pairs, &spanCtxPair{span: span, ctx: ctx})
	rt.Span = span
	rt.SpanContext = ctx
	return rt
}

// StepBack ends the current span and makes its parent current again. The
// request span itself is only ended by Finish.
func (rt *RequestRuntime) StepBack() {
	if len(rt.pairs) <= 1 {
		log.Warn().Msg("trying to step back out of the request span")
		return
	}

	rt.pairs[len(rt.pairs)-1].span.End()
	rt.pairs = rt.pairs[:len(rt.pairs)-1]

	pair := rt.pairs[len(rt.pairs)-1]
	rt.Span = pair.span
	rt.SpanContext = pair.ctx
}

func (rt *RequestRuntime) Depth() int {
	return len(rt.pairs)
}

// Finish ends every span still open, innermost first.
func (rt *RequestRuntime) Finish() {
	for len(rt.pairs) > 1 {
		rt.StepBack()
	}
	rt.Span.End()
}

func (rt *RequestRuntime) TraceID() string {
	return rt.pairs[0].span.SpanContext().TraceID().String()
}
