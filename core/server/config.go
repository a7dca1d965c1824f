package server

// Config holds configuration for the HTTP server.
type Config struct {
	// Port is the port where the server will listen.
	Port string `mapstructure:"port" default:"8080"`
	// ApiKey is the secret key required to access the API.
	ApiKey string `mapstructure:"api_key" default:""`
	// BodyLimitMB caps request bodies, which bounds ingestion batch size.
	BodyLimitMB int `mapstructure:"body_limit_mb" default:"16"`
}

// BodyLimit returns the request body limit in bytes.
func (c Config) BodyLimit() int {
	if c.BodyLimitMB <= 0 {
		return 16 * 1024 * 1024
	}
	return c.BodyLimitMB * 1024 * 1024
}
