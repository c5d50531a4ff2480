// Package fileutil holds filesystem helpers for crash-safe document writes.
package fileutil
