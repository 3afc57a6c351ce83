package rpc

import (
	"bytes"

	"github.com/ugorji/go/codec"
)

// The control surface is a binary request/response call: one kind byte
// followed by the json encoded body. Responses echo the request kind, or
// carry KindError with a human-readable message; a call always completes
// with a well-formed response.

// Request and response kinds.
const (
	KindError uint8 = iota
	KindGetActivitySettings
	KindSetActivitySettings
	KindGetAllActivitySettings
	KindRefreshAllActivitySettings
)

// GetActivitySettingsRequest reads the local settings store.
type GetActivitySettingsRequest struct{}

// GetActivitySettingsResponse ...
type GetActivitySettingsResponse struct {
	IdleMs  uint32
	SleepMs uint32
}

// SetActivitySettingsRequest writes the local settings store and, on
// success, relays the change to the other role.
type SetActivitySettingsRequest struct {
	IdleMs  uint32
	SleepMs uint32
}

// SetActivitySettingsResponse reports Success=false when the value was
// rejected; no relay is performed in that case.
type SetActivitySettingsResponse struct {
	Success bool
}

// GetAllActivitySettingsRequest runs a blocking collection round across all
// nodes.
type GetAllActivitySettingsRequest struct{}

// SettingsEntry is one node's settings with its resolved origin index.
type SettingsEntry struct {
	IdleMs  uint32
	SleepMs uint32
	Source  uint8
}

// GetAllActivitySettingsResponse returns the collected entries after the
// window closes. InSync is true iff every entry matches the central entry.
type GetAllActivitySettingsResponse struct {
	Entries []SettingsEntry
	InSync  bool
}

// RefreshAllActivitySettingsRequest triggers the fan-out protocol: the call
// returns immediately and entries arrive as out-of-band notifications.
type RefreshAllActivitySettingsRequest struct{}

// RefreshAllActivitySettingsResponse ...
type RefreshAllActivitySettingsResponse struct {
	RequestSent bool
	Session     string
}

// ErrorResponse carries a human-readable failure message.
type ErrorResponse struct {
	Message string
}

// encodePayload frames a kind byte followed by the json encoded body.
func encodePayload(kind uint8, body interface{}) ([]byte, error) {
	b := new(bytes.Buffer)
	b.WriteByte(kind)

	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(body); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// decodeBody decodes the body that follows the kind byte.
func decodeBody(data []byte, out interface{}) error {
	b := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(b, jh)

	return dec.Decode(out)
}
