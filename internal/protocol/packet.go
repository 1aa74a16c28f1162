// Package protocol implements the Source RCON wire format spoken by the
// Palworld dedicated server: size-prefixed little-endian frames carrying a
// request id, a packet kind, and a NUL-terminated text body.
package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// wrapperSize is the number of non-body bytes counted by the size prefix:
// four bytes each for the id and kind, plus the two NUL terminator bytes.
// The size prefix itself is not included.
const wrapperSize = 4 + 4 + 2

// MaxPacketSize is the defensive upper bound on the size prefix. The RCON
// protocol family caps packets at 4096 bytes; anything larger indicates a
// corrupt stream rather than a legitimate frame.
const MaxPacketSize = 4096

// Packet kinds as defined by the Source RCON protocol. Auth responses and
// command requests share the value 2 and are told apart by direction.
const (
	KindResponseValue int32 = 0
	KindExecCommand   int32 = 2
	KindAuthResponse  int32 = 2
	KindAuth          int32 = 3
)

// AuthFailedID is echoed in place of the request id when the server rejects
// the password of an auth packet.
const AuthFailedID int32 = -1

// FramingError reports a malformed frame: a truncated stream, an implausible
// declared size, or a missing terminator.
type FramingError struct {
	Reason string
	Err    error
}

func (e *FramingError) Error() string {
	if e.Err != nil {
		return "protocol: " + e.Reason + ": " + e.Err.Error()
	}
	return "protocol: " + e.Reason
}

func (e *FramingError) Unwrap() error {
	return e.Err
}

// Packet is a single RCON frame, either direction.
type Packet struct {
	// ID correlates responses with requests. The server echoes the id of the
	// request it is answering, except for a failed auth where it echoes
	// AuthFailedID instead.
	ID int32

	// Kind is one of the Kind* constants.
	Kind int32

	// Body is the payload: the password for auth packets, the command text
	// for exec packets, or the (possibly empty) response text.
	Body []byte
}

// MarshalBinary encodes the packet into its wire representation.
func (p Packet) MarshalBinary() ([]byte, error) {
	size := len(p.Body) + wrapperSize
	if size > MaxPacketSize {
		return nil, &FramingError{Reason: fmt.Sprintf("packet body of %d bytes exceeds maximum frame size", len(p.Body))}
	}

	buf := make([]byte, 4+size)
	binary.LittleEndian.PutUint32(buf[0:], uint32(size))
	binary.LittleEndian.PutUint32(buf[4:], uint32(p.ID))
	binary.LittleEndian.PutUint32(buf[8:], uint32(p.Kind))
	copy(buf[12:], p.Body)
	// Last two bytes are already zero: body NUL plus packet NUL.

	return buf, nil
}

// WriteTo writes the encoded packet to w.
func (p Packet) WriteTo(w io.Writer) (int64, error) {
	raw, err := p.MarshalBinary()
	if err != nil {
		return 0, err
	}

	n, err := w.Write(raw)
	return int64(n), err
}

// ReadFrom blocks until one complete frame has been read from r and decodes
// it into the receiver. A stream that ends mid-frame, declares a size outside
// [wrapperSize, MaxPacketSize], or lacks the two NUL terminator bytes yields
// a FramingError.
func (p *Packet) ReadFrom(r io.Reader) (int64, error) {
	var n int64

	header := make([]byte, 4)
	if _, err := io.ReadFull(r, header); err != nil {
		return n, framing(err, "reading size prefix")
	}
	n += 4

	size := int32(binary.LittleEndian.Uint32(header))
	if size < wrapperSize {
		return n, &FramingError{Reason: fmt.Sprintf("declared size %d below minimum frame size", size)}
	}
	if size > MaxPacketSize {
		return n, &FramingError{Reason: fmt.Sprintf("declared size %d exceeds maximum frame size", size)}
	}

	frame := make([]byte, size)
	read, err := io.ReadFull(r, frame)
	n += int64(read)
	if err != nil {
		return n, framing(err, "reading frame")
	}

	if frame[size-2] != 0 || frame[size-1] != 0 {
		return n, &FramingError{Reason: "frame not NUL terminated"}
	}

	p.ID = int32(binary.LittleEndian.Uint32(frame[0:]))
	p.Kind = int32(binary.LittleEndian.Uint32(frame[4:]))
	p.Body = frame[8 : size-2]

	return n, nil
}

// Equal reports whether two packets carry identical id, kind, and body.
func (p Packet) Equal(other Packet) bool {
	return p.ID == other.ID && p.Kind == other.Kind && bytes.Equal(p.Body, other.Body)
}

// framing wraps a read error as a FramingError, preserving io.EOF on a clean
// close before any prefix byte so callers can tell "connection done" from
// "frame cut short". The cause stays reachable through Unwrap so callers can
// still detect read deadline expiry underneath.
func framing(err error, during string) error {
	if err == io.EOF && during == "reading size prefix" {
		return io.EOF
	}

	return &FramingError{Reason: "stream closed " + during, Err: err}
}
