// Package persistence stores the model state of an RTSM node so that it
// survives restarts.
//
// The store is a single JSON file keyed by model name. Writes go to a
// temporary file that replaces the previous one, so a crash never leaves a
// truncated file behind.
package persistence
