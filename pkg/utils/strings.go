package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// Formats a 32 bit word as a fixed width, upper case hex string (0x0000ABCD)
func FormatHex32(value uint32) string {
	return fmt.Sprintf("0x%08X", value)
}

// Parses a hex string with an optional 0x prefix into a 32 bit word
func ParseHex32(text string) (uint32, error) {
	text = strings.TrimPrefix(strings.TrimPrefix(text, "0x"), "0X")
	value, err := strconv.ParseUint(text, 16, 32)
	return uint32(value), err
}
