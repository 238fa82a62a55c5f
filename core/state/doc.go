// Package state keeps ephemeral per-actor conversation sessions.
// It knows nothing about Telegram or about the flows stored in it; callers name flows and
// steps and carry their partial data as string fields.
package state
