// Package command writes commands to the MCU and collects time-windowed
// responses.
package command

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// DefaultLineEnding terminates text commands.
const DefaultLineEnding = "\r\n"

// Command is one outbound instruction. There is no request id: responses are
// correlated by time window only.
type Command struct {
	Bytes  []byte
	Binary bool
}

// Text builds a text command terminated by lineEnding unless token already
// ends with it.
func Text(token, lineEnding string) Command {
	if lineEnding != "" && !strings.HasSuffix(token, lineEnding) {
		token += lineEnding
	}
	return Command{Bytes: []byte(token)}
}

// Binary builds a raw opcode command.
func Binary(b ...byte) Command {
	return Command{Bytes: append([]byte(nil), b...), Binary: true}
}

// ParseCommand accepts "hex:24020101", "0x24 02 01 01" or a plain text token.
// Text tokens get lineEnding appended.
func ParseCommand(s, lineEnding string) (Command, error) {
	trimmed := strings.TrimSpace(s)
	lower := strings.ToLower(trimmed)
	var digits string
	switch {
	case strings.HasPrefix(lower, "hex:"):
		digits = trimmed[len("hex:"):]
	case strings.HasPrefix(lower, "0x"):
		digits = trimmed[len("0x"):]
	default:
		if trimmed == "" {
			return Command{}, fmt.Errorf("empty command")
		}
		return Text(trimmed, lineEnding), nil
	}

	digits = strings.NewReplacer(" ", "", ",", "", "0x", "", "0X", "").Replace(digits)
	if digits == "" {
		return Command{}, fmt.Errorf("empty hex command %q", s)
	}
	b, err := hex.DecodeString(digits)
	if err != nil {
		return Command{}, fmt.Errorf("invalid hex command %q: %w", s, err)
	}
	return Binary(b...), nil
}

// Hex renders the command bytes as space separated hex pairs, e.g. "24 02 01 01".
func (c Command) Hex() string {
	pairs := make([]string, len(c.Bytes))
	for i, b := range c.Bytes {
		pairs[i] = fmt.Sprintf("%02x", b)
	}
	return strings.Join(pairs, " ")
}

func (c Command) String() string {
	if c.Binary {
		return c.Hex()
	}
	return fmt.Sprintf("%q", string(c.Bytes))
}

// IsZero reports whether the command has no bytes.
func (c Command) IsZero() bool { return len(c.Bytes) == 0 }
