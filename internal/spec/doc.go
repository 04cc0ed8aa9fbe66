// Package spec compiles method declarations written in CUE.
//
// A declaration lives under the top-level "method" field:
//
//	package greeter
//
//	method: Greet: {
//		description: "Greets a person by name"
//		input:  {name: string, greeting: string | *"hello"}
//		output: string
//		events: Greeted: {text: string}
//		errors: Rejected: {reason: string}
//	}
//
// Every field is optional. Schemas stay CUE values, so the validators built
// from a Declaration apply CUE defaults and constraints at call time.
// A Declaration becomes a method.Definition once a handler is bound to it.
package spec
