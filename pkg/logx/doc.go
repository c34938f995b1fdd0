// Package logx configures edgeadmin's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - Optional notice sink (error lines surfaced to dashboard operators)
package logx
