// Package charproc implements the byte-level input and output translations
// of the terminal line discipline. The functions are pure: they read the
// current settings and return the bytes to enqueue, leaving all buffer and
// signal side effects to the caller.
package charproc

import "github.com/dshills/ttyld/internal/tty/termios"

// Backspace is the byte emitted to move the cursor one column left.
const Backspace = 0x08

// MaxOutput is the largest number of bytes ProcessOutput produces for a
// single input byte.
const MaxOutput = 3

// ProcessInput translates one raw byte arriving at the slave-bound input
// path. It returns the byte to hand to the buffer inserter and the number of
// buffer bytes it will occupy. skip reports that the byte must be dropped
// without consuming buffer space. With IUCLC, upper case letters are folded
// to lower case.
//
// Signal characters (with ISIG) and line editing characters (with ICANON)
// come back unchanged with needed == 0: they are acted upon by the inserter
// and never stored.
func ProcessInput(t *termios.Termios, c byte) (out byte, needed int, skip bool) {
	if t.LEnabled(termios.ISIG) {
		if t.Is(termios.VINTR, c) || t.Is(termios.VQUIT, c) || t.Is(termios.VSUSP, c) {
			return c, 0, false
		}
	}

	if t.LEnabled(termios.ICANON) {
		if t.Is(termios.VERASE, c) || t.Is(termios.VKILL, c) {
			return c, 0, false
		}
	}

	switch {
	case c == '\r':
		if t.IEnabled(termios.IGNCR) {
			return 0, 0, true
		}
		if t.IEnabled(termios.ICRNL) {
			c = '\n'
		}
	case c == '\n':
		if t.IEnabled(termios.INLCR) {
			c = '\r'
		}
	case t.IEnabled(termios.ISTRIP):
		c &= 0x7f
	}
	if t.IEnabled(termios.IUCLC) && c >= 'A' && c <= 'Z' {
		c += 'a' - 'A'
	}
	return c, 1, false
}

// ProcessOutput translates one byte bound for output into buf and returns the
// number of bytes written (0 to MaxOutput). echoed marks bytes that are the
// echo of input; those additionally obey the echo-related local flags.
//
// ONOCR (no CR at column 0) is not applied: the column is not known here.
func ProcessOutput(t *termios.Termios, c byte, echoed bool, buf *[MaxOutput]byte) int {
	if echoed && !t.LEnabled(termios.ECHO) && c != '\n' {
		// With ECHO off only ECHONL produces echo, and only for newlines.
		return 0
	}

	if t.OEnabled(termios.OPOST) {
		switch {
		case echoed && t.Is(termios.VERASE, c):
			if t.LEnabled(termios.ECHOE) {
				buf[0] = Backspace
				buf[1] = ' '
				buf[2] = Backspace
				return 3
			}
		case echoed && t.Is(termios.VKILL, c):
			if !t.LEnabled(termios.ECHOK) {
				return 0
			}
		case echoed && t.Is(termios.VEOF, c):
			return 0
		case c == '\n':
			if echoed && t.Lflag&(termios.ECHO|termios.ECHONL) == 0 {
				return 0
			}
			if t.OEnabled(termios.ONLCR) {
				buf[0] = '\r'
				buf[1] = '\n'
				return 2
			}
		case c == '\r':
			if t.OEnabled(termios.OCRNL) {
				c = '\n'
			} else if t.OEnabled(termios.ONLRET) {
				return 0
			}
		default:
			if t.OEnabled(termios.OLCUC) && c >= 'a' && c <= 'z' {
				c -= 'a' - 'A'
			}
		}
	}

	buf[0] = c
	return 1
}
