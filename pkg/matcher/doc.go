// Package matcher decides whether an inbound message satisfies a cue.
//
// Strategies are compiled once with Compile and then applied to any number of
// candidate payloads. A compiled Matcher holds no mutable state and is safe for
// concurrent use.
package matcher
