// Package config handles configuration loading, parsing, and validation
// from environment variables, an optional .env file and an optional
// config.yaml. It gives each component of the upload daemon type-safe
// access to its settings.
package config
