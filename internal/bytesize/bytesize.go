// Package bytesize computes UTF-8 wire lengths without encoding.
package bytesize

import "unicode/utf8"

const (
	surrHighStart = 0xD800
	surrHighEnd   = 0xDBFF
	surrLowStart  = 0xDC00
	surrLowEnd    = 0xDFFF

	// Bytes of U+FFFD, which replaces invalid input on the wire.
	replacementLen = 3
)

// Estimate returns the number of bytes s occupies as UTF-8 once every
// invalid byte has been replaced by U+FFFD, which is what a JSON encoder
// puts on the wire.
func Estimate(s string) int {
	n := 0
	for i := 0; i < len(s); {
		r, width := utf8.DecodeRuneInString(s[i:])
		i += width
		switch {
		case r == utf8.RuneError && width == 1:
			n += replacementLen
		case r <= 0x7F:
			n++
		case r <= 0x7FF:
			n += 2
		case r <= 0xFFFF:
			n += 3
		default:
			n += 4
		}
	}
	return n
}

// EstimateUTF16 returns the UTF-8 length of a UTF-16 code unit sequence.
// A high surrogate followed by a low surrogate is one 4-byte code point and
// consumes both units. Unpaired surrogates count as U+FFFD.
func EstimateUTF16(units []uint16) int {
	n := 0
	for i := 0; i < len(units); i++ {
		u := units[i]
		switch {
		case u <= 0x7F:
			n++
		case u <= 0x7FF:
			n += 2
		case u >= surrHighStart && u <= surrHighEnd:
			if i+1 < len(units) && units[i+1] >= surrLowStart && units[i+1] <= surrLowEnd {
				n += 4
				i++
				continue
			}
			n += replacementLen
		case u >= surrLowStart && u <= surrLowEnd:
			n += replacementLen
		default:
			n += 3
		}
	}
	return n
}
