// Package upstream talks to the Foundry chat completions endpoint. It
// translates client requests into the upstream body, performs the HTTP
// exchange with bearer auth, and exposes SSE streams as a sequence of
// parsed events. Requests are never retried: duplicate completions cost
// real money and duplicate streams confuse clients.
package upstream
