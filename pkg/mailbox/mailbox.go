package mailbox

import (
	"encoding/binary"
	"errors"
	"sync"
	"time"
)

// Mailbox protocol types, low nibble of the header type field
const (
	TypeAoE uint8 = 0x01
	TypeEoE uint8 = 0x02
	TypeCoE uint8 = 0x03
	TypeFoE uint8 = 0x04
	TypeSoE uint8 = 0x05
	TypeVoE uint8 = 0x0F
)

const (
	HeaderSize = 6

	// The session counter occupies bits 4..6 of the type field
	countShift = 4
	countMask  = 0x07
)

var (
	ErrHeaderLength = errors.New("mailbox header length exceeds mailbox size")
	ErrBufferSize   = errors.New("buffer does not fit in slave mailbox")
)

// Mailbox header, common to all mailbox protocols
type Header struct {
	Length   uint16
	Address  uint16
	Priority uint8
	Type     uint8
}

func (h Header) Protocol() uint8 {
	return h.Type & 0x0F
}

func (h Header) Count() uint8 {
	return (h.Type >> countShift) & countMask
}

// Assemble a type field from protocol and session counter
func TypeWithCount(protocol uint8, count uint8) uint8 {
	return (protocol & 0x0F) | (count&countMask)<<countShift
}

// Compute the next mailbox session counter value
// Values roll over 1..7, zero is reserved
func NextCount(previous uint8) uint8 {
	return previous%7 + 1
}

func PutHeader(b []byte, h Header) {
	binary.LittleEndian.PutUint16(b, h.Length)
	binary.LittleEndian.PutUint16(b[2:], h.Address)
	b[4] = h.Priority
	b[5] = h.Type
}

func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, ErrHeaderLength
	}
	h := Header{
		Length:   binary.LittleEndian.Uint16(b),
		Address:  binary.LittleEndian.Uint16(b[2:]),
		Priority: b[4],
		Type:     b[5],
	}
	if int(h.Length) > len(b)-HeaderSize {
		return h, ErrHeaderLength
	}
	return h, nil
}

// A Buffer is one mailbox sized scratch buffer, header included
type Buffer struct {
	Data []byte
}

func (b *Buffer) clear() {
	// Restore full capacity, encoders may have trimmed the slice
	b.Data = b.Data[:cap(b.Data)]
	for i := range b.Data {
		b.Data[i] = 0
	}
}

// Pool hands out zeroed mailbox buffers and takes them back.
// Outstanding counts buffers currently held by callers, every
// Get must be balanced by exactly one Put.
type Pool struct {
	mu          sync.Mutex
	size        int
	free        []*Buffer
	outstanding int
}

func NewPool(size int, capacity int) *Pool {
	p := &Pool{size: size}
	for i := 0; i < capacity; i++ {
		p.free = append(p.free, &Buffer{Data: make([]byte, size)})
	}
	return p
}

// Acquire a zeroed buffer
func (p *Pool) Get() *Buffer {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outstanding++
	if len(p.free) == 0 {
		return &Buffer{Data: make([]byte, p.size)}
	}
	buf := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	return buf
}

// Release a buffer back to the pool
func (p *Pool) Put(buf *Buffer) {
	if buf == nil {
		return
	}
	buf.clear()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outstanding--
	p.free = append(p.free, buf)
}

func (p *Pool) Outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outstanding
}

// Transport is the mailbox contract consumed by the transfer
// protocols (FoE, ...). One Transport serves one slave.
//
// Buffers come from Get and must be released with Put exactly once.
// Send takes ownership of the buffer on success, on error the buffer
// stays with the caller. Receive hands a filled buffer to the caller.
// A zero receive timeout performs a single non blocking attempt,
// used to drain a stale mailbox.
type Transport interface {
	Get() *Buffer
	Put(buf *Buffer)
	Send(buf *Buffer, timeout time.Duration) error
	Receive(timeout time.Duration) (*Buffer, error)
	// Advance and return the session counter of the slave, 1..7
	NextCount() uint8
	// Write mailbox capacity of the slave in bytes
	DataSize() int
}
