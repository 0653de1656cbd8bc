package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

type AuthRequirement int

const (
	AuthNone AuthRequirement = iota

	AuthRequired
)

// Call is what a handler sees of a request
type Call struct {
	Args []json.RawMessage

	Kwargs map[string]json.RawMessage

	// Principal is empty for anonymous callers
	Principal string

	RemoteAddr string
}

// Arg decodes the argument at position i, or the keyword argument name when
// fewer positional arguments were sent. A missing or undecodable argument is
// a DomainError.
func (c *Call) Arg(i int, name string, dst any) error {

	var raw json.RawMessage

	if i < len(c.Args) {

		raw = c.Args[i]

	} else if kw, ok := c.Kwargs[name]; ok {

		raw = kw

	} else {

		return Domainf(http.StatusInternalServerError, "missing argument %q", name)
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		return Domainf(http.StatusInternalServerError, "invalid argument %q: %v", name, err)
	}

	return nil
}

// HasArg reports whether the argument was sent at all
func (c *Call) HasArg(i int, name string) bool {

	if i < len(c.Args) {
		return true
	}

	_, ok := c.Kwargs[name]

	return ok
}

type HandlerFunc func(ctx context.Context, call *Call) (any, error)

// Handler describes one callable API method
type Handler struct {
	Name string

	Auth AuthRequirement

	Func HandlerFunc
}

// Registry is the closed set of methods reachable through the API
type Registry struct {
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds h. Registering a name twice is a programming error and panics.
func (r *Registry) Register(handlers ...Handler) {

	for _, h := range handlers {

		if h.Name == "" || h.Func == nil {
			panic("dispatch: handler needs a name and a function")
		}

		if _, exists := r.handlers[h.Name]; exists {
			panic(fmt.Sprintf("dispatch: handler %q registered twice", h.Name))
		}

		r.handlers[h.Name] = h
	}
}

func (r *Registry) Lookup(name string) (Handler, bool) {

	h, ok := r.handlers[name]

	return h, ok
}
