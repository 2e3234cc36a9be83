package control

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Format selects a wire encoding for State.
type Format string

const (
	FormatJSON Format = "json"
	FormatCBOR Format = "cbor"
)

// ParseFormat maps a query or config value to a Format. Empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatCBOR:
		return FormatCBOR, nil
	}
	return "", fmt.Errorf("unknown state format %q", s)
}

// Encode serializes s in the given format.
func Encode(s State, f Format) ([]byte, error) {
	switch f {
	case FormatCBOR:
		return cbor.Marshal(s)
	case FormatJSON, "":
		return json.Marshal(s)
	}
	return nil, fmt.Errorf("unknown state format %q", f)
}

// Decode parses data produced by Encode.
func Decode(data []byte, f Format) (State, error) {
	var s State
	var err error
	switch f {
	case FormatCBOR:
		err = cbor.Unmarshal(data, &s)
	case FormatJSON, "":
		err = json.Unmarshal(data, &s)
	default:
		err = fmt.Errorf("unknown state format %q", f)
	}
	return s, err
}
