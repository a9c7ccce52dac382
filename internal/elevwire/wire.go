// Package elevwire carries the controller protocol: length-prefixed ASCII
// messages over TCP and the small grammar built on top of them.
package elevwire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MAX_MESSAGE_LENGTH bounds incoming payloads so a corrupt length prefix
// cannot force an arbitrary allocation.
const MAX_MESSAGE_LENGTH = 1024

// Send writes a single framed message: a big-endian uint32 payload length
// followed by the payload bytes, no terminator.
func Send(w io.Writer, message string) error {
	buf := make([]byte, 4+len(message))
	binary.BigEndian.PutUint32(buf[:4], uint32(len(message)))
	copy(buf[4:], message)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// Receive reads one framed message written by Send on the peer side.
func Receive(r io.Reader) (string, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return "", fmt.Errorf("receive length: %w", err)
	}
	length := binary.BigEndian.Uint32(lenBuf[:])
	if length > MAX_MESSAGE_LENGTH {
		return "", fmt.Errorf("receive message: length %d exceeds limit", length)
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return "", fmt.Errorf("receive payload: %w", err)
	}
	return string(payload), nil
}
