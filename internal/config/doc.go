// Package config loads, normalizes, and validates podscribe configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// PODSCRIBE_FEED_URL and HF_TOKEN. The Config type replaces every global path
// and knob the pipeline needs, so the audio and data directories, the feed
// source, and the transcription backend are resolved once at startup.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
