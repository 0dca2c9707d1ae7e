package foe

import (
	"encoding/binary"

	"github.com/samsamfire/goethercat/pkg/mailbox"
)

// Packet is the decoded form of one FoE mailbox packet.
// The meaning of Num and Payload depends on the opcode :
//
//	READ / WRITE : password, filename
//	DATA / ACK   : packet number, data
//	ERROR        : error code, error text
//	BUSY         : unused
type Packet struct {
	Op      OpCode
	Num     uint32
	Payload []byte
}

// Build a READ or WRITE request. The filename is clamped to what
// fits in one segment, over long names are truncated not rejected.
func newRequest(op OpCode, filename string, password uint32, maxdata int) Packet {
	if len(filename) > maxdata {
		filename = filename[:maxdata]
	}
	return Packet{Op: op, Num: password, Payload: []byte(filename)}
}

func newData(packet uint32, data []byte) Packet {
	return Packet{Op: OpData, Num: packet, Payload: data}
}

func newAck(packet uint32) Packet {
	return Packet{Op: OpAck, Num: packet}
}

// Write the packet into a mailbox buffer, stamping the given
// session counter into the mailbox header
func (p Packet) encode(buf *mailbox.Buffer, count uint8) error {
	total := mailbox.HeaderSize + headerSize + len(p.Payload)
	if total > len(buf.Data) {
		return ErrMailboxLength
	}
	mailbox.PutHeader(buf.Data, mailbox.Header{
		Length:   uint16(headerSize + len(p.Payload)),
		Address:  0,
		Priority: 0,
		Type:     mailbox.TypeWithCount(mailbox.TypeFoE, count),
	})
	buf.Data[mailbox.HeaderSize] = uint8(p.Op)
	buf.Data[mailbox.HeaderSize+1] = 0
	binary.LittleEndian.PutUint32(buf.Data[mailbox.HeaderSize+2:], p.Num)
	copy(buf.Data[mailbox.HeaderSize+headerSize:], p.Payload)
	buf.Data = buf.Data[:total]
	return nil
}

// Decode one FoE packet from a received mailbox buffer.
// The payload aliases the buffer, callers copy before release.
// A non FoE mailbox or a short frame is an unexpected packet.
func decode(buf *mailbox.Buffer) (Packet, error) {
	header, err := mailbox.ParseHeader(buf.Data)
	if err != nil {
		return Packet{}, ErrUnexpectedPacket
	}
	if header.Protocol() != mailbox.TypeFoE || header.Length < headerSize {
		return Packet{}, ErrUnexpectedPacket
	}
	body := buf.Data[mailbox.HeaderSize : mailbox.HeaderSize+int(header.Length)]
	return Packet{
		Op:      OpCode(body[0]),
		Num:     binary.LittleEndian.Uint32(body[2:]),
		Payload: body[headerSize:],
	}, nil
}
