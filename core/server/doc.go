// Package server holds the HTTP server configuration.
//
// The Config struct defines the HTTP port, the API key required on every request,
// and the request body limit applied by fiber. It is embedded by core/config and
// read by the start command.
package server
