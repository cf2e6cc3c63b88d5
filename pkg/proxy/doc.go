// Package proxy holds the HTTP plumbing shared by the proxy's handlers:
// request parsing with a body cap, JSON response writers, and the SSE
// primitives used to relay and synthesize stream events.
package proxy
