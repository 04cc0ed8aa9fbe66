package method

import (
	"sync"
	"time"
)

// Entry is one successful Emit or Raise.
type Entry struct {
	// Seq orders entries within one call, across both EventsEmitted and
	// ErrorsThrown. The first entry of a call has Seq 1.
	Seq       int64
	Timestamp time.Time
	Name      string

	// Payload is the value returned by the name's validator, which may
	// differ from what the handler passed in.
	Payload any
}

// Result is the record of one call. Call returns it only when every stage
// succeeded; it is never shared between calls.
//
// EventsEmitted and ErrorsThrown only grow, in the order the handler issued
// Emit and Raise. Output is set after Result.
type Result struct {
	CallID string
	Method string

	// Input is the validated input handed to the handler.
	Input any

	EventsEmitted []Entry
	ErrorsThrown  []Entry

	// Result is the handler's raw return value.
	Result any

	// Output is Result after output validation.
	Output any

	mu       sync.Mutex
	seq      int64
	finished bool
}

func newResult(callID, method string, input any) *Result {
	return &Result{
		CallID:        callID,
		Method:        method,
		Input:         input,
		EventsEmitted: []Entry{},
		ErrorsThrown:  []Entry{},
	}
}

// appendEvent and appendError fail with ErrCallFinished once the handler
// has returned.
func (r *Result) appendEvent(at time.Time, name string, payload any) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finished {
		return Entry{}, ErrCallFinished
	}
	r.seq++
	e := Entry{Seq: r.seq, Timestamp: at, Name: name, Payload: payload}
	r.EventsEmitted = append(r.EventsEmitted, e)
	return e, nil
}

func (r *Result) appendError(at time.Time, name string, payload any) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finished {
		return Entry{}, ErrCallFinished
	}
	r.seq++
	e := Entry{Seq: r.seq, Timestamp: at, Name: name, Payload: payload}
	r.ErrorsThrown = append(r.ErrorsThrown, e)
	return e, nil
}

func (r *Result) finish() {
	r.mu.Lock()
	r.finished = true
	r.mu.Unlock()
}

// Events returns the emitted events with the given name, in order.
func (r *Result) Events(name string) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return filterEntries(r.EventsEmitted, name)
}

// Errors returns the raised errors with the given name, in order.
func (r *Result) Errors(name string) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return filterEntries(r.ErrorsThrown, name)
}

// HasErrors reports whether the handler raised at least one error.
func (r *Result) HasErrors() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ErrorsThrown) > 0
}

func filterEntries(entries []Entry, name string) []Entry {
	var out []Entry
	for _, e := range entries {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}
