package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"statsdb/dispatch"
)

// Authenticator resolves the caller of a request to a principal
type Authenticator interface {
	Authenticate(r *http.Request) (string, bool)
}

// RequestIDKey is the gin context key the request ID middleware sets
const RequestIDKey = "request_id"

type ApiController struct {
	dispatcher *dispatch.Dispatcher

	authenticator Authenticator
}

// NewApiController creates the API endpoint. authenticator may be nil, in
// which case every caller is anonymous.
func NewApiController(dispatcher *dispatch.Dispatcher, authenticator Authenticator) *ApiController {

	return &ApiController{

		dispatcher: dispatcher,

		authenticator: authenticator,
	}
}

// Call dispatches the `[method, args, kwargs]` envelope in the json form field
func (c *ApiController) Call(ctx *gin.Context) {

	var result dispatch.Result

	if err := ctx.Request.ParseForm(); err != nil {

		result = dispatch.Result{Kind: dispatch.KindEnvelope, Err: &dispatch.EnvelopeError{Message: "unreadable request body: " + err.Error()}}

	} else {

		form, present := ctx.GetPostForm("json")

		req := dispatch.Request{

			Form: form,

			FormPresent: present,

			RemoteAddr: ctx.ClientIP(),

			RequestID: ctx.GetString(RequestIDKey),
		}

		// resolved only when the method requires a caller
		if c.authenticator != nil {

			req.Authenticate = func() (string, bool) {
				return c.authenticator.Authenticate(ctx.Request)
			}
		}

		result = c.dispatcher.Dispatch(ctx.Request.Context(), req)
	}

	status, contentType, body := c.dispatcher.Render(result)

	ctx.Data(status, contentType, body)
}
