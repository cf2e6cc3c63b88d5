// Package audit keeps a trail of proxied chat completions: which model was
// asked, where it was routed, how the exchange ended, and how many
// reasoning regions were elided from the reply. Records never contain
// message content.
package audit
