// Package schema resolves schema declarations into validators.
//
// A Validator parses a value: it either returns the (possibly coerced) value
// or fails with an error describing why the value does not conform. The
// package does not define schema semantics itself. It adapts the engines the
// module supports to one interface:
//
//   - CUE values (cuelang.org/go), which may coerce through defaults
//   - compiled JSON Schemas (github.com/santhosh-tekuri/jsonschema/v6)
//   - plain Go functions
//
// Resolve maps an absent declaration (nil) to Passthrough, which returns
// every value unchanged and never fails.
package schema
