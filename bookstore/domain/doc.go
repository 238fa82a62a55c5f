// Package domain holds the bookstore entities, their state transitions and the error taxonomy
// shared by the stores and the engines.
package domain
