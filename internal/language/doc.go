// Package language normalizes the transcription language setting.
//
// Whisper and WhisperX both take ISO 639-1 codes. Users may configure a
// two-letter code, a three-letter ISO 639-2 code (terminologic or
// bibliographic), a BCP 47 tag such as "en-US", or an English word such as
// "german"; all resolve to the same two-letter base.
package language
