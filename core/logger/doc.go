// Package logger builds the zap logger shared by the server and the CLI.
//
// Level "debug" selects zap's development preset; any other level uses the
// production preset at that level. Format "console" switches the encoder from
// JSON to colored human readable output.
//
// Two helpers derive child loggers:
//
//	l := logger.WithRayID(base, c)                  // per HTTP request
//	l = logger.WithScope(l, "T1", "2024-01")        // per reconciliation scope
//
// The pure matching code never logs; callers log around it.
package logger
