package connection

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Protocol is the transfer protocol of one collective message.
type Protocol uint8

const (
	Eager Protocol = iota // payload travels with the header
	Put                   // receiver advertises its buffer, sender writes into it
	Get                   // sender advertises its buffer, receiver reads from it
)

func (p Protocol) String() string {
	switch p {
	case Eager:
		return "eager"
	case Put:
		return "put"
	case Get:
		return "get"
	default:
		return fmt.Sprintf("protocol(%d)", uint8(p))
	}
}

var endian = binary.LittleEndian

var (
	ErrBadProtocol             = errors.New("bad protocol in header")
	errUnexpectedMessageLength = errors.New("unexpected message length")
)

// Header describes one collective message. Sender and Recver are virtual
// ranks, Round and Tag identify the step of the collective it belongs to.
type Header struct {
	Protocol Protocol
	Comm     uint32
	Tag      uint32
	Round    uint32
	Sender   uint32
	Recver   uint32
	Count    uint32
	TypeSize uint32
}

func (h Header) ByteLength() int {
	return int(h.Count) * int(h.TypeSize)
}

func (h Header) WriteTo(w io.Writer) error {
	return binary.Write(w, endian, &h)
}

// ReadFrom reads a header and rejects unknown protocols.
func (h *Header) ReadFrom(r io.Reader) error {
	if err := binary.Read(r, endian, h); err != nil {
		return err
	}
	if h.Protocol > Get {
		return ErrBadProtocol
	}
	return nil
}

func (h Header) String() string {
	return fmt.Sprintf("header{%s,comm=%d,tag=%d,round=%d,%d->%d,n=%d}",
		h.Protocol, h.Comm, h.Tag, h.Round, h.Sender, h.Recver, h.Count)
}

// Message is the payload following a header
type Message struct {
	Length uint32
	Data   []byte
}

func (m Message) WriteTo(w io.Writer) error {
	if err := binary.Write(w, endian, m.Length); err != nil {
		return err
	}
	_, err := w.Write(m.Data)
	return err
}

// ReadFrom reads the message from a reader into new buffer.
// The message length is obtained from the reader and should be trusted.
func (m *Message) ReadFrom(r io.Reader) error {
	if err := binary.Read(r, endian, &m.Length); err != nil {
		return err
	}
	m.Data = GetBuf(m.Length) // Use memory pool
	if err := readN(r, m.Data, int(m.Length)); err != nil {
		return err
	}
	return nil
}

// ReadInto reads the message from a reader into existing buffer.
// The message length obtained from the reader should be checked.
func (m *Message) ReadInto(r io.Reader) error {
	var length uint32
	if err := binary.Read(r, endian, &length); err != nil {
		return err
	}
	if length != m.Length {
		return errUnexpectedMessageLength
	}
	return readN(r, m.Data, int(m.Length))
}

func (m Message) String() string {
	return fmt.Sprintf("message{length=%d}", m.Length)
}

func readN(r io.Reader, buffer []byte, n int) error {
	for offset := 0; offset < n; {
		k, err := r.Read(buffer[offset:n])
		if err != nil {
			return err
		}
		offset += k
	}
	return nil
}
