// Package session persists conversation history between caller loop runs.
//
// A Store keeps ordered model messages per conversation ID. InMemoryStore is
// the default process-local implementation; other backends can implement the
// Store interface without the loop noticing.
package session
