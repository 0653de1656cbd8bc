package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"statsdb/metrics"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testRegistry(ran *bool) *Registry {

	r := NewRegistry()

	r.Register(

		Handler{Name: "echo", Func: func(_ context.Context, call *Call) (any, error) {

			var s string

			if err := call.Arg(0, "value", &s); err != nil {
				return nil, err
			}

			return map[string]string{"value": s}, nil
		}},

		Handler{Name: "secret", Auth: AuthRequired, Func: func(context.Context, *Call) (any, error) {

			*ran = true

			return "classified", nil
		}},

		Handler{Name: "refuse", Func: func(context.Context, *Call) (any, error) {
			return nil, Domainf(http.StatusConflict, "not today")
		}},

		Handler{Name: "broken", Func: func(context.Context, *Call) (any, error) {
			return nil, errors.New("database is on fire")
		}},

		Handler{Name: "panics", Func: func(context.Context, *Call) (any, error) {
			panic("nil map write")
		}},

		Handler{Name: "unencodable", Func: func(context.Context, *Call) (any, error) {
			return make(chan int), nil
		}},
	)

	return r
}

func newTestDispatcher(t *testing.T, production bool, ran *bool) *Dispatcher {
	return New(testRegistry(ran), production, zaptest.NewLogger(t), metrics.New())
}

func dispatchForm(d *Dispatcher, form string) Result {
	return d.Dispatch(context.Background(), Request{Form: form, FormPresent: true})
}

func TestDispatchSuccess(t *testing.T) {

	d := newTestDispatcher(t, true, new(bool))

	for _, form := range []string{
		`["echo", ["hi"], {}]`,
		`["echo", [], {"value": "hi"}]`,
		`["echo", null, {"value": "hi"}]`,
		`["echo", ["hi"]]`,
	} {

		res := dispatchForm(d, form)

		require.Equal(t, KindOK, res.Kind, form)

		status, contentType, body := d.Render(res)

		assert.Equal(t, http.StatusOK, status)

		assert.Equal(t, "application/json", contentType)

		assert.JSONEq(t, `{"value":"hi"}`, string(body))
	}
}

func TestEnvelopeErrors(t *testing.T) {

	d := newTestDispatcher(t, true, new(bool))

	missing := d.Dispatch(context.Background(), Request{})

	assert.Equal(t, KindEnvelope, missing.Kind)

	for _, form := range []string{
		``,
		`not json`,
		`{"method": "echo"}`,
		`[]`,
		`["echo", [], {}, "extra"]`,
		`[42, [], {}]`,
		`["", [], {}]`,
		`["echo", {}, {}]`,
		`["echo", [], []]`,
	} {

		res := dispatchForm(d, form)

		assert.Equal(t, KindEnvelope, res.Kind, form)

		status, _, _ := d.Render(res)

		assert.Equal(t, http.StatusInternalServerError, status, form)
	}
}

func TestUnknownHandler(t *testing.T) {

	d := newTestDispatcher(t, true, new(bool))

	res := dispatchForm(d, `["drop_tables", [], {}]`)

	assert.Equal(t, KindUnknownHandler, res.Kind)

	assert.Equal(t, "drop_tables", res.Method)

	status, _, body := d.Render(res)

	assert.Equal(t, http.StatusInternalServerError, status)

	assert.Equal(t, "unknown method: drop_tables", string(body))
}

func TestUnknownMethodsShareOneMetricSeries(t *testing.T) {

	m := metrics.New()

	d := New(NewRegistry(), true, zaptest.NewLogger(t), m)

	for i := 0; i < 50; i++ {
		d.Dispatch(context.Background(), Request{Form: fmt.Sprintf(`["junk_%d", [], {}]`, i), FormPresent: true})
	}

	rec := httptest.NewRecorder()

	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	var series []string

	for _, line := range strings.Split(rec.Body.String(), "\n") {

		if strings.HasPrefix(line, "statsdb_api_calls_total{") {
			series = append(series, line)
		}
	}

	require.Len(t, series, 1)

	assert.Contains(t, series[0], `method="unknown"`)

	assert.True(t, strings.HasSuffix(series[0], " 50"))
}

func TestAuthRequiredDoesNotRunHandler(t *testing.T) {

	ran := false

	d := newTestDispatcher(t, true, &ran)

	res := dispatchForm(d, `["secret", [], {}]`)

	assert.Equal(t, KindDomain, res.Kind)

	assert.False(t, ran)

	status, _, _ := d.Render(res)

	assert.Equal(t, http.StatusForbidden, status)

	res = d.Dispatch(context.Background(), Request{Form: `["secret", [], {}]`, FormPresent: true, Principal: "tester"})

	assert.Equal(t, KindOK, res.Kind)

	assert.True(t, ran)

	assert.JSONEq(t, `"classified"`, string(res.Payload))
}

func TestDomainErrorRendering(t *testing.T) {

	prod := newTestDispatcher(t, true, new(bool))

	status, _, body := prod.Render(dispatchForm(prod, `["refuse", [], {}]`))

	assert.Equal(t, http.StatusConflict, status)

	assert.Equal(t, "not today", string(body))

	dev := newTestDispatcher(t, false, new(bool))

	status, _, body = dev.Render(dispatchForm(dev, `["refuse", [], {}]`))

	assert.Equal(t, http.StatusConflict, status)

	assert.Contains(t, string(body), "not today")

	assert.Contains(t, string(body), "dispatcher_test.go")
}

func TestMissingArgumentIsDomainError(t *testing.T) {

	d := newTestDispatcher(t, true, new(bool))

	res := dispatchForm(d, `["echo", [], {}]`)

	assert.Equal(t, KindDomain, res.Kind)

	_, _, body := d.Render(res)

	assert.Equal(t, `missing argument "value"`, string(body))
}

func TestFaultsHideDetailsInProduction(t *testing.T) {

	for _, method := range []string{"broken", "panics", "unencodable"} {

		prod := newTestDispatcher(t, true, new(bool))

		res := dispatchForm(prod, `["`+method+`", [], {}]`)

		require.Equal(t, KindFault, res.Kind, method)

		status, _, body := prod.Render(res)

		assert.Equal(t, http.StatusInternalServerError, status)

		assert.Equal(t, "internal server error", string(body))

		dev := newTestDispatcher(t, false, new(bool))

		_, _, body = dev.Render(dispatchForm(dev, `["`+method+`", [], {}]`))

		assert.NotEqual(t, "internal server error", string(body))

		assert.Contains(t, string(body), "dispatcher.go", method)
	}
}

func TestPanicMessageKeepsCause(t *testing.T) {

	d := newTestDispatcher(t, false, new(bool))

	res := dispatchForm(d, `["panics", [], {}]`)

	assert.Contains(t, res.Err.Error(), "nil map write")
}

func TestRegisterTwicePanics(t *testing.T) {

	r := NewRegistry()

	h := Handler{Name: "x", Func: func(context.Context, *Call) (any, error) { return nil, nil }}

	r.Register(h)

	assert.Panics(t, func() { r.Register(h) })
}

func TestHasArg(t *testing.T) {

	call := &Call{Args: []json.RawMessage{json.RawMessage(`1`)}, Kwargs: map[string]json.RawMessage{"b": json.RawMessage(`2`)}}

	assert.True(t, call.HasArg(0, "a"))

	assert.True(t, call.HasArg(1, "b"))

	assert.False(t, call.HasArg(1, "c"))
}
