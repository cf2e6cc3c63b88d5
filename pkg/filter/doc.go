// Package filter elides delimited reasoning regions from model output.
//
// Reasoning-capable models interleave their final answer with a chain of
// thought wrapped in <think>...</think> markers. The proxy drops those
// regions before output reaches the client. Two variants exist:
//
//   - State filters an incrementally arriving stream. It accepts arbitrary
//     fragments, recognizes delimiters that straddle fragment boundaries, and
//     never buffers more than one partial delimiter, so memory stays bounded
//     no matter how long the stream runs.
//   - Clean filters fully materialized text in one pass and additionally
//     tidies the whitespace that removal leaves behind.
//
// The streaming variant is authoritative: it guarantees that no reasoning
// byte is ever released to a client, even when the upstream stream is cut off
// in the middle of a region.
package filter
