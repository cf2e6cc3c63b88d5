// Package types defines the OpenAI-compatible wire shapes the proxy accepts
// and produces: the chat completion request, the streaming chunk envelope,
// the model listing, and the error envelope with its HTTP status mapping.
package types
