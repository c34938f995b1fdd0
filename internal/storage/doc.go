// Package storage is the key-value persistence layer behind dashboard
// preferences (first-visit flag, UI settings).
//
// Drivers:
//   - memory: process-local map (default)
//   - file: JSON snapshot, rewritten with an atomic rename
//   - sqlite: single table, embedded migration
//   - redis: prefixed keys, Clear via SCAN+DEL
//
// Prefs wraps a Store for callers that must never fail.
package storage
