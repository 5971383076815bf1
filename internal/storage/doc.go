package storage

// Package storage persists run history so past campaigns can be inspected
// from the dashboard and the terminal menu.
//
// It currently supports:
//   - A dependency-free JSON Lines file backend
//   - A SQLite database file
