package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/casahunt/internal/pkg/telemetry"
)

// requestHeaderCarrier adapts fasthttp request headers to the OTel
// propagation.TextMapCarrier interface.
type requestHeaderCarrier struct {
	h *fasthttp.RequestHeader
}

func (rc requestHeaderCarrier) Get(key string) string { return string(rc.h.Peek(key)) }

func (rc requestHeaderCarrier) Set(key, value string) { rc.h.Set(key, value) }

func (rc requestHeaderCarrier) Keys() []string {
	var keys []string
	rc.h.VisitAll(func(k, _ []byte) {
		keys = append(keys, string(k))
	})
	return keys
}

// TracingMiddleware starts a server span per request, continuing any trace
// propagated by the caller. With no tracer provider installed it is a no-op.
func TracingMiddleware() fiber.Handler {
	tracer := telemetry.Tracer("http")

	return func(c *fiber.Ctx) error {
		ctx := otel.GetTextMapPropagator().Extract(c.UserContext(),
			requestHeaderCarrier{h: &c.Request().Header})

		ctx, span := tracer.Start(ctx, c.Method()+" "+c.Path(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPRequestMethodKey.String(c.Method()),
				semconv.URLPath(c.Path()),
			),
		)
		defer span.End()
		c.SetUserContext(ctx)

		err := c.Next()

		status := c.Response().StatusCode()
		if route := c.Route(); route != nil && route.Path != "" {
			span.SetName(c.Method() + " " + route.Path)
			span.SetAttributes(semconv.HTTPRoute(route.Path))
		}
		span.SetAttributes(semconv.HTTPResponseStatusCode(status))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else if status >= 500 {
			span.SetStatus(codes.Error, fasthttp.StatusMessage(status))
		}
		return err
	}
}
