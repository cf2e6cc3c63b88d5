// Package handlers provides HTTP request handlers for the proxy server.
//
// This package implements the OpenAI-compatible endpoints: chat completions
// (streaming and non-streaming), the model listing, and the health probe.
// Each handler parses the request, resolves the target Foundry deployment,
// forwards the exchange, and formats the response — filtering marked
// reasoning regions out of completion text on the way back.
//
// # Request Flow
//
// A chat completion request moves through a fixed sequence:
//
//  1. Parse and bound the request body (JSON unmarshaling)
//  2. Resolve the client-facing model ID to a Foundry deployment
//  3. Acquire an Entra bearer token for the upstream
//  4. Translate the body to the Foundry contract (deployment name, defaults)
//  5. Forward the exchange, streaming or buffered
//  6. Filter marked reasoning regions from assistant content
//  7. Record the outcome in metrics and the audit trail
//
// # Error Propagation
//
// Errors raised before any response bytes are written become ordinary HTTP
// error responses in the OpenAI envelope:
//
//	{
//	  "error": {
//	    "message": "Entra token acquisition failed: ...",
//	    "type": "bad_gateway"
//	  }
//	}
//
// A streaming response commits its 200 status and SSE headers before the
// upstream exchange begins, so upstream failures after that point can no
// longer change the status. They are surfaced as a single in-band error
// event followed by the stream terminator:
//
//	data: {"error":{"message":"Foundry request timed out","type":"timeout"}}
//	data: [DONE]
//
// Clients must treat an in-band error event as terminal.
//
// # Streaming Format
//
// Streaming responses use Server-Sent Events. Upstream chunks whose content
// survives filtering unchanged are relayed byte for byte; chunks whose
// content is partially elided are rewritten; chunks that are entirely
// reasoning are swallowed. Text still buffered in the filter when the
// upstream finishes is released as one synthesized chunk before [DONE]:
//
//	data: {"id":"proxy-flush-1700000000","object":"chat.completion.chunk",...}
//	data: [DONE]
//
// Every stream ends with the [DONE] marker, whether it succeeded, failed
// mid-flight, or was truncated by the upstream.
package handlers
