// Package storage provides the audit trail backends: an in-memory store
// with a hard record cap, and a SQLite store for durable trails.
package storage
