// Package config loads, normalizes, and validates upapasta configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and parses human-friendly size strings such
// as "20M". The Config type centralizes every knob the CLI needs: pipeline
// defaults, external tool names, descriptor settings, and log output.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical values, and clear validation errors.
package config
