// Package server assembles the HTTP surface of the proxy: the route table,
// the middleware chain, and the lifecycle of the listening socket.
//
// The chat and model routes sit behind bearer authentication; the health
// probe and the metrics endpoint stay outside it so infrastructure can
// reach them without the shared secret. TLS serving reloads its key pair
// from disk, so certificate rotations need no restart.
package server
