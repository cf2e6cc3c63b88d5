// Package auth gates client access with a single shared secret presented
// as a bearer token. It distinguishes a missing token (401) from a wrong
// one (403), and refuses to serve at all when no secret is configured.
package auth
