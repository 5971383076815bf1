// Package logx wraps zerolog behind a small field-function API so the rest
// of the codebase never imports zerolog directly.
//
// The Service owns the configured sinks (console, rolling file, event bus)
// and can hot-swap them via Apply() without invalidating loggers already
// handed out.
package logx
