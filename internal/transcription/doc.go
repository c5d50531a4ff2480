// Package transcription converts downloaded audio into transcript text.
//
// A Loader selects a speech-to-text backend from configuration and yields a
// Transcriber bound to one model. Two command-line engines are supported:
// openai-whisper ("whisper") and WhisperX launched through uvx ("whisperx").
// Both write JSON into a scratch directory that is read back and removed.
//
// Engines accept a CommandRunner so tests can replace process execution.
package transcription
