// Package operator provides the stream operators a pipeline graph is built
// from.
//
// Every operator has one of three roles: a Source has no inputs, a Unary
// operator consumes one upstream and an NAry operator consumes several.
// Stream returns a fresh pull-based sequence on every call; it always ends
// with retrievable.Terminal followed by exhaustion.
//
// Fan-out goes through Broadcast, which copies each element for every
// subscriber. Fan-in goes through Combine (coalesce by id) or Concat
// (interleave).
package operator
