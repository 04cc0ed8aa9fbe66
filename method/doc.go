// Package method wraps handlers with schema validation at every boundary.
//
// A Method is built once from a Definition: optional input and output
// schemas, named event schemas, named error schemas and a handler. Each Call
// runs a strict four-stage pipeline:
//
//  1. validate the given input (KindInvalidInput on failure)
//  2. run the handler with a per-call *Call bound to a fresh *Result;
//     Emit and Raise validate payloads and append entries to the Result
//  3. validate the handler's return value as output (KindInvalidOutput)
//  4. return the populated Result
//
// Failures are reported as *Error, a tagged variant carrying the failing
// stage (Kind), the offending payload and the underlying cause. Any stage
// failure aborts the call; nothing is retried.
//
// Raise records a declared error occurrence as data. It does not stop the
// handler: a handler may raise several errors and still return normally.
//
// A Method holds only read-only state after Define and may be called from
// many goroutines at once. Every call owns its Result and *Call.
package method
