package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Color is a 32-bit ARGB value.
type Color uint32

const White Color = 0xFFFFFFFF

// Hex renders #RRGGBB, dropping alpha.
func (c Color) Hex() string {
	return fmt.Sprintf("#%06X", uint32(c)&0xFFFFFF)
}

// Int32 is the signed form Android stores colors in.
func (c Color) Int32() int32 { return int32(uint32(c)) }

// RGB returns the channel bytes.
func (c Color) RGB() (r, g, b uint8) {
	return uint8(c >> 16), uint8(c >> 8), uint8(c)
}

// ParseColor accepts #RRGGBB and #AARRGGBB; RRGGBB gets an opaque alpha.
func ParseColor(s string) (Color, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "#") {
		return White, fmt.Errorf("color %q: missing #", s)
	}
	hex := s[1:]
	if len(hex) != 6 && len(hex) != 8 {
		return White, fmt.Errorf("color %q: want #RRGGBB or #AARRGGBB", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return White, fmt.Errorf("color %q: %w", s, err)
	}
	if len(hex) == 6 {
		v |= 0xFF000000
	}
	return Color(v), nil
}

// ColorOrWhite parses s and falls back to White for blank or invalid input.
func ColorOrWhite(s string) Color {
	if strings.TrimSpace(s) == "" {
		return White
	}
	c, err := ParseColor(s)
	if err != nil {
		return White
	}
	return c
}
