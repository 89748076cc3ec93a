// Package framing splits a byte stream into delimiter-terminated frames.
//
// A Reader keeps the unterminated tail of the stream between calls to Feed,
// so a delimiter split across two network reads is still recognized. Frames
// are yielded lazily and only once their delimiter has been seen.
package framing
