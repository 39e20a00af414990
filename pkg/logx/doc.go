// Package logx configures schedboard's structured logging.
//
// A small wrapper (logx.Logger) on top of zerolog keeps:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - A zero value that is safe to use and logs nothing
package logx
