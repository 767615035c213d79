package session

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dshills/asmstudio/internal/bridge"
)

// Messages logged when submitted input is rejected.
const (
	MsgTooManyCharacters = "Too many characters detected."
	MsgNoCharacters      = "No characters detected."
	MsgNotANumber        = "The text could not be converted to a valid number."
)

// InputError is a rejected input submission. Message is shown to the user
// verbatim.
type InputError struct {
	Message string
}

func (e *InputError) Error() string {
	return e.Message
}

// ParseInput validates text against the kind of input the program asked
// for and returns the value sent to the engine. A character is sent as its
// code point.
func ParseInput(req bridge.InputRequest, text string) (int32, error) {
	switch req {
	case bridge.InputGetChar:
		switch n := utf8.RuneCountInString(text); {
		case n == 0:
			return 0, &InputError{Message: MsgNoCharacters}
		case n > 1:
			return 0, &InputError{Message: MsgTooManyCharacters}
		}
		r, _ := utf8.DecodeRuneInString(text)
		return int32(r), nil

	case bridge.InputGetNumber:
		n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 32)
		if err != nil {
			return 0, &InputError{Message: MsgNotANumber}
		}
		return int32(n), nil

	default:
		return 0, ErrNoInputPending
	}
}
