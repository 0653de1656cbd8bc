// Package dispatch routes `[method, args, kwargs]` API calls to a closed
// registry of handlers and turns their outcome into an HTTP response.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"statsdb/metrics"
)

// Request is the transport-independent part of an API call
type Request struct {
	// Form is the value of the `json` form field
	Form string

	FormPresent bool

	// Principal is set by the transport when the caller is already known
	Principal string

	// Authenticate resolves the caller on demand. It only runs for methods
	// that require authentication and may be nil.
	Authenticate func() (string, bool)

	RemoteAddr string

	RequestID string
}

// Result is either a JSON payload or a tagged error
type Result struct {
	Kind Kind

	Method string

	Payload json.RawMessage

	Err error
}

type Dispatcher struct {
	registry *Registry

	production bool

	log *zap.Logger

	metrics *metrics.Metrics
}

func New(registry *Registry, production bool, log *zap.Logger, m *metrics.Metrics) *Dispatcher {

	if log == nil {
		log = zap.NewNop()
	}

	return &Dispatcher{registry: registry, production: production, log: log, metrics: m}
}

// Dispatch runs one call. It never panics and never returns an untagged error.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Result {

	result := d.dispatch(ctx, req)

	d.metrics.Call(metricMethod(result), result.Kind.String())

	fields := []zap.Field{

		zap.String("request_id", req.RequestID),

		zap.String("method", result.Method),

		zap.Stringer("outcome", result.Kind),
	}

	switch result.Kind {

	case KindOK:
		d.log.Debug("api call", fields...)

	case KindFault:
		d.log.Error("api call failed", append(fields, zap.String("trace", fmt.Sprintf("%+v", result.Err)))...)

	default:
		d.log.Warn("api call rejected", append(fields, zap.Error(result.Err))...)
	}

	return result
}

// metricMethod keeps client-chosen method names out of metric labels
func metricMethod(r Result) string {

	if r.Kind == KindUnknownHandler {
		return "unknown"
	}

	return r.Method
}

func (d *Dispatcher) dispatch(ctx context.Context, req Request) Result {

	env, err := ParseEnvelope(req.Form, req.FormPresent)

	if err != nil {
		return Result{Kind: KindEnvelope, Err: err}
	}

	handler, ok := d.registry.Lookup(env.Method)

	if !ok {

		return Result{

			Kind: KindUnknownHandler,

			Method: env.Method,

			Err: Domainf(http.StatusInternalServerError, "unknown method: %s", env.Method),
		}
	}

	principal := req.Principal

	if handler.Auth == AuthRequired && principal == "" && req.Authenticate != nil {

		if p, ok := req.Authenticate(); ok {
			principal = p
		}
	}

	if handler.Auth == AuthRequired && principal == "" {

		return Result{

			Kind: KindDomain,

			Method: env.Method,

			Err: Domainf(http.StatusForbidden, "authentication required for %s", env.Method),
		}
	}

	call := &Call{

		Args: env.Args,

		Kwargs: env.Kwargs,

		Principal: principal,

		RemoteAddr: req.RemoteAddr,
	}

	payload, err := invoke(ctx, handler, call)

	if err != nil {

		var domainErr *DomainError

		if errors.As(err, &domainErr) {
			return Result{Kind: KindDomain, Method: env.Method, Err: domainErr}
		}

		return Result{Kind: KindFault, Method: env.Method, Err: err}
	}

	body, err := json.Marshal(payload)

	if err != nil {
		return Result{Kind: KindFault, Method: env.Method, Err: errors.Wrap(err, "failed to encode result")}
	}

	return Result{Kind: KindOK, Method: env.Method, Payload: body}
}

// invoke turns a handler panic into a fault carrying the panic site's stack
func invoke(ctx context.Context, h Handler, call *Call) (payload any, err error) {

	defer func() {

		if r := recover(); r != nil {
			err = errors.Errorf("panic in %s: %v", h.Name, r)
		}
	}()

	payload, err = h.Func(ctx, call)

	if err != nil {

		var domainErr *DomainError

		if !errors.As(err, &domainErr) {
			err = errors.WithStack(err)
		}
	}

	return payload, err
}

// Render produces the HTTP response for r. Outside production, error bodies
// carry the full trace; in production they carry only client-safe text.
func (d *Dispatcher) Render(r Result) (status int, contentType string, body []byte) {

	const text = "text/plain; charset=utf-8"

	switch r.Kind {

	case KindOK:
		return http.StatusOK, "application/json", r.Payload

	case KindEnvelope:
		return http.StatusInternalServerError, text, []byte(r.Err.Error())

	case KindUnknownHandler, KindDomain:

		var domainErr *DomainError

		if !errors.As(r.Err, &domainErr) {
			break
		}

		if d.production {
			return domainErr.Status, text, []byte(domainErr.Message)
		}

		return domainErr.Status, text, []byte(fmt.Sprintf("%+v", domainErr))
	}

	if d.production {
		return http.StatusInternalServerError, text, []byte("internal server error")
	}

	return http.StatusInternalServerError, text, []byte(fmt.Sprintf("%+v", r.Err))
}
