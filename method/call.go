package method

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Call is the capability a handler receives for one invocation. It records
// into that invocation's Result and stops accepting entries once the handler
// returns.
type Call struct {
	method *Method
	result *Result
	obs    *observation
	log    zerolog.Logger
}

// CallID returns the identifier of the invocation this Call belongs to.
func (c *Call) CallID() string {
	return c.result.CallID
}

// Emit validates payload against the schema declared for the event name and
// appends it to the Result's EventsEmitted.
//
// It returns a KindInvalidEvent *Error when the name is not declared or the
// payload does not conform. The handler decides whether to return that error;
// returning it fails the call.
func (c *Call) Emit(ctx context.Context, name string, payload any) error {
	v, ok := c.method.events[name]
	if !ok {
		return c.invalidEvent(name, payload, fmt.Errorf("%w: %q", ErrEventNotFound, name))
	}

	validated, err := v.Parse(ctx, payload)
	if err != nil {
		return c.invalidEvent(name, payload, err)
	}

	entry, err := c.result.appendEvent(c.method.opts.now(), name, validated)
	if err != nil {
		return c.invalidEvent(name, payload, err)
	}

	c.obs.recorded(ctx, "event", name)
	c.log.Debug().Str("event", name).Int64("seq", entry.Seq).Msg("event emitted")
	return nil
}

// Raise validates payload against the schema declared for the error name and
// appends it to the Result's ErrorsThrown. Raising does not abort the handler.
//
// It returns a KindInvalidError *Error when the name is not declared or the
// payload does not conform.
func (c *Call) Raise(ctx context.Context, name string, payload any) error {
	v, ok := c.method.errors[name]
	if !ok {
		return c.invalidError(name, payload, fmt.Errorf("%w: %q", ErrErrorNotFound, name))
	}

	validated, err := v.Parse(ctx, payload)
	if err != nil {
		return c.invalidError(name, payload, err)
	}

	entry, err := c.result.appendError(c.method.opts.now(), name, validated)
	if err != nil {
		return c.invalidError(name, payload, err)
	}

	c.obs.recorded(ctx, "error", name)
	c.log.Debug().Str("error", name).Int64("seq", entry.Seq).Msg("error raised")
	return nil
}

func (c *Call) invalidEvent(name string, payload any, cause error) error {
	return &Error{Kind: KindInvalidEvent, Method: c.method.name, Name: name, Payload: payload, Cause: cause}
}

func (c *Call) invalidError(name string, payload any, cause error) error {
	return &Error{Kind: KindInvalidError, Method: c.method.name, Name: name, Payload: payload, Cause: cause}
}
