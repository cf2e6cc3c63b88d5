// Package token acquires and caches the Entra bearer tokens the proxy
// presents to the inference backend. Client API keys never reach upstream;
// every upstream call carries a token from one of these sources instead.
package token
