// Package wire implements the greeting frame exchanged between peers: a
// 2-byte big-endian length followed by the string in modified UTF-8. The
// format is byte compatible with Java's DataOutput.writeUTF, so Go peers can
// greet (and be greeted by) JVM and Android peers speaking the same protocol.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unicode/utf16"
)

// MaxEncodedLen is the largest payload a frame can carry.
const MaxEncodedLen = 0xFFFF

var (
	ErrTooLong   = errors.New("wire: encoded string exceeds 65535 bytes")
	ErrMalformed = errors.New("wire: malformed modified UTF-8 input")
)

// EncodedLen returns the number of payload bytes s occupies on the wire,
// excluding the length prefix.
func EncodedLen(s string) int {
	n := 0
	for _, c := range utf16.Encode([]rune(s)) {
		n += unitLen(c)
	}
	return n
}

func unitLen(c uint16) int {
	switch {
	case c >= 0x0001 && c <= 0x007F:
		return 1
	case c <= 0x07FF:
		return 2
	default:
		return 3
	}
}

// Encode returns the full frame for s, length prefix included.
func Encode(s string) ([]byte, error) {
	units := utf16.Encode([]rune(s))
	n := 0
	for _, c := range units {
		n += unitLen(c)
	}
	if n > MaxEncodedLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLong, n)
	}

	buf := make([]byte, 2, 2+n)
	binary.BigEndian.PutUint16(buf, uint16(n))
	for _, c := range units {
		switch unitLen(c) {
		case 1:
			buf = append(buf, byte(c))
		case 2:
			buf = append(buf, 0xC0|byte(c>>6&0x1F), 0x80|byte(c&0x3F))
		default:
			buf = append(buf, 0xE0|byte(c>>12&0x0F), 0x80|byte(c>>6&0x3F), 0x80|byte(c&0x3F))
		}
	}
	return buf, nil
}

// WriteUTF writes s as a single frame.
func WriteUTF(w io.Writer, s string) error {
	frame, err := Encode(s)
	if err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// ReadUTF reads exactly one frame from r. A frame cut short by EOF yields
// io.ErrUnexpectedEOF; an empty reader yields io.EOF.
func ReadUTF(r io.Reader) (string, error) {
	var prefix [2]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return "", err
	}
	payload := make([]byte, binary.BigEndian.Uint16(prefix[:]))
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) {
			return "", io.ErrUnexpectedEOF
		}
		return "", err
	}
	return Decode(payload)
}

// Decode converts a modified UTF-8 payload (without length prefix) to a
// string. Unpaired surrogates decode to U+FFFD.
func Decode(payload []byte) (string, error) {
	units := make([]uint16, 0, len(payload))
	for i := 0; i < len(payload); {
		b := payload[i]
		switch b >> 4 {
		case 0, 1, 2, 3, 4, 5, 6, 7:
			units = append(units, uint16(b))
			i++
		case 12, 13:
			if i+1 >= len(payload) || payload[i+1]&0xC0 != 0x80 {
				return "", fmt.Errorf("%w: bad 2-byte sequence at offset %d", ErrMalformed, i)
			}
			units = append(units, uint16(b&0x1F)<<6|uint16(payload[i+1]&0x3F))
			i += 2
		case 14:
			if i+2 >= len(payload) || payload[i+1]&0xC0 != 0x80 || payload[i+2]&0xC0 != 0x80 {
				return "", fmt.Errorf("%w: bad 3-byte sequence at offset %d", ErrMalformed, i)
			}
			units = append(units, uint16(b&0x0F)<<12|uint16(payload[i+1]&0x3F)<<6|uint16(payload[i+2]&0x3F))
			i += 3
		default:
			return "", fmt.Errorf("%w: unexpected byte 0x%02x at offset %d", ErrMalformed, b, i)
		}
	}
	return string(utf16.Decode(units)), nil
}
