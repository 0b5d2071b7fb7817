package middleware

import (
	"github.com/gin-gonic/gin"
	"go.nhat.io/otelsql/attribute"
	"go.opentelemetry.io/otel/metric"

	"git.sr.ht/~aondrejcak/chai-api/kernel"
)

// TracerMiddleware opens the request runtime. Bodies are never recorded on
// the span: verify requests carry signatures.
func TracerMiddleware(art *kernel.AppRuntime) gin.HandlerFunc {
	return func(c *gin.Context) {
		rt := kernel.InitRequest(art, c)

		rt.Span.SetAttributes(
			attribute.KeyValue("http.method", c.Request.Method),
			attribute.KeyValue("http.route", c.FullPath()),
			attribute.KeyValue("http.host", c.Request.Host),
		)

		art.Diagnostic.RequestCounter.Add(rt.SpanContext, 1,
			metric.WithAttributes(attribute.KeyValue("http.method", c.Request.Method)),
		)

		c.Set(kernel.RuntimeKey, rt)
		c.Request = c.Request.WithContext(rt.SpanContext)

		c.Next()

		rt.Span.SetAttributes(attribute.KeyValue("http.status_code", c.Writer.Status()))
		rt.Finish()
	}
}
