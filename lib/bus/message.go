// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bus

import (
	"encoding/binary"
	"fmt"

	"github.com/opendcc/liveshare/lib/codec"
)

// messageHeaderSize is the size of the session identity that prefixes
// every edit message.
const messageHeaderSize = 8

// EncodeMessage frames record, an encoded edit record, for the edit
// bus: the sender's session identity in native byte order followed by
// the record bytes.
func EncodeMessage(session uint64, record []byte) []byte {
	message := make([]byte, messageHeaderSize+len(record))
	binary.NativeEndian.PutUint64(message, session)
	copy(message[messageHeaderSize:], record)
	return message
}

// DecodeMessage splits an edit message into the sender's session
// identity and the encoded record. The record aliases message.
func DecodeMessage(message []byte) (session uint64, record []byte, err error) {
	if len(message) < messageHeaderSize {
		return 0, nil, &codec.CorruptDataError{
			Want:      messageHeaderSize,
			Remaining: len(message),
			Reason:    "edit message shorter than its session header",
		}
	}
	return binary.NativeEndian.Uint64(message), message[messageHeaderSize:], nil
}

// RequestTransferDirectory is the only catch-up request code: ask the
// responder for its transfer directory path.
const RequestTransferDirectory int32 = 1

// MaxReplyLength bounds a catch-up reply.
const MaxReplyLength = 255

// EncodeRequest encodes a catch-up request code in native byte order.
func EncodeRequest(code int32) []byte {
	request := make([]byte, 4)
	binary.NativeEndian.PutUint32(request, uint32(code))
	return request
}

// DecodeRequest decodes a catch-up request code.
func DecodeRequest(request []byte) (int32, error) {
	if len(request) != 4 {
		return 0, fmt.Errorf("%w: catch-up request is %d bytes, want 4", codec.ErrCorruptData, len(request))
	}
	return int32(binary.NativeEndian.Uint32(request)), nil
}

// Envelope carries one sync request or reply between the broker and a
// responder. Route identifies the waiting requester; the responder
// copies it into its reply unchanged.
type Envelope struct {
	Route uint64 `cbor:"route"`
	Body  []byte `cbor:"body,omitempty"`
}

// MarshalEnvelope encodes an envelope.
func MarshalEnvelope(envelope Envelope) ([]byte, error) {
	return codec.Marshal(envelope)
}

// UnmarshalEnvelope decodes an envelope.
func UnmarshalEnvelope(data []byte) (Envelope, error) {
	var envelope Envelope
	if err := codec.Unmarshal(data, &envelope); err != nil {
		return Envelope{}, fmt.Errorf("decoding sync envelope: %w", err)
	}
	return envelope, nil
}

// DescribeEnvelope renders data for diagnostics: CBOR diagnostic
// notation when data is well-formed CBOR, otherwise a hex prefix.
func DescribeEnvelope(data []byte) string {
	if diagnostic, err := codec.Diagnose(data); err == nil {
		return diagnostic
	}
	const limit = 32
	if len(data) > limit {
		return fmt.Sprintf("%x... (%d bytes)", data[:limit], len(data))
	}
	return fmt.Sprintf("%x", data)
}
