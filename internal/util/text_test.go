package util

import (
	"testing"

	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"
)

func TestPadRight(t *testing.T) {
	tests := []struct {
		name     string
		str      string
		width    int
		expected string
	}{
		{"Empty string", "", 5, "     "},
		{"Short string", "abc", 10, "abc       "},
		{"Exact width", "hello", 5, "hello"},
		{"String too long", "this is a very long string", 10, "this is..."},
		{"Width 4", "hello", 4, "h..."},
		{"Chinese characters", "你好", 8, "你好    "},
		{"Mixed characters", "hello世界", 12, "hello世界   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := PadRight(tt.str, tt.width)
			assert.Equal(t, tt.expected, result)
			if runewidth.StringWidth(tt.str) <= tt.width {
				assert.Equal(t, tt.width, runewidth.StringWidth(result))
			}
		})
	}
}

func TestPrintable(t *testing.T) {
	tests := []struct {
		name     string
		str      string
		expected string
	}{
		{"Plain text", "Hello from pixel!!!", "Hello from pixel!!!"},
		{"Unicode kept", "Grüße 你好 😀", "Grüße 你好 😀"},
		{"Escape sequence neutralised", "\x1b[2Jboom", "�[2Jboom"},
		{"Newline and carriage return", "a\r\nb", "a��b"},
		{"Tab becomes space", "a\tb", "a b"},
		{"NUL", "a\x00b", "a�b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Printable(tt.str))
		})
	}
}
