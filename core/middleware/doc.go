// Package middleware contains HTTP middleware for the Fiber application.
//
// # Components
//
//   - auth: API key validation (X-API-Key) protecting every route when server.api_key is set.
//   - rayid: tags each request with a ray id, stored in locals and echoed in X-Ray-ID,
//     so log lines from one request can be correlated.
package middleware
