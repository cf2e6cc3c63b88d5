// Package middleware provides the HTTP middleware chain: request IDs,
// request logging, panic recovery, and CORS.
package middleware
