package tracing

import (
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type tracingTransport struct {
	provider string
	base     http.RoundTripper
}

// WrapHTTPClient returns a copy of client whose requests run inside a client span.
func WrapHTTPClient(client *http.Client, provider string) *http.Client {
	if client == nil {
		client = &http.Client{}
	}
	base := client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	wrapped := *client
	wrapped.Transport = &tracingTransport{provider: provider, base: base}
	return &wrapped
}

func (t *tracingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx, span := otel.Tracer("petroprice/providers").Start(req.Context(),
		"HTTP "+strings.ToUpper(req.Method)+" "+t.provider,
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()

	req = req.Clone(ctx)
	InjectHeaders(ctx, req.Header)

	resp, err := t.base.RoundTrip(req)
	span.SetAttributes(SafeAttributes(
		attribute.String("provider", t.provider),
		attribute.String("http.method", req.Method),
	)...)
	if err != nil {
		span.RecordError(SafeError(err))
		span.SetStatus(codes.Error, "transport error")
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, "upstream error")
	}
	return resp, nil
}
