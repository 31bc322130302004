// Package config loads, normalizes, and validates reelnotes configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// OPENAI_API_KEY, OPENROUTER_API_KEY, and DATABASE_URL. The Config type
// centralizes every knob the daemon and CLI need so provider credentials and
// working directories are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
