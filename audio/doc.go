// Package audio provides the thin device wrappers used by the client: paced
// 16-bit PCM capture from a reader or a tone generator, playback to a writer
// or WAV file, and the noise-suppression transforms applied before sending.
package audio
