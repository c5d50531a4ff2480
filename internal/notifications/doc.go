// Package notifications pushes pipeline events to ntfy.
//
// The ntfy service posts plain-text messages to the configured topic URL with
// Title, Tags, and Priority headers. When no topic is configured a no-op
// service is returned. Per-event toggles in the [notifications] config section
// silence episode, run, or error messages individually.
package notifications
