package datagram

import (
	"encoding/binary"
	"errors"
	"fmt"

	ethercat "github.com/samsamfire/goethercat"
)

// EtherCAT datagram commands
type Command uint8

const (
	CommandNOP  Command = 0  // No operation
	CommandAPRD Command = 1  // Auto increment read
	CommandAPWR Command = 2  // Auto increment write
	CommandAPRW Command = 3  // Auto increment read write
	CommandFPRD Command = 4  // Configured address read
	CommandFPWR Command = 5  // Configured address write
	CommandFPRW Command = 6  // Configured address read write
	CommandBRD  Command = 7  // Broadcast read
	CommandBWR  Command = 8  // Broadcast write
	CommandBRW  Command = 9  // Broadcast read write
	CommandLRD  Command = 10 // Logical memory read
	CommandLWR  Command = 11 // Logical memory write
	CommandLRW  Command = 12 // Logical memory read write
	CommandARMW Command = 13 // Auto increment read multiple write
	CommandFRMW Command = 14 // Configured read multiple write
)

func (c Command) String() string {
	switch c {
	case CommandNOP:
		return "NOP"
	case CommandAPRD:
		return "APRD"
	case CommandAPWR:
		return "APWR"
	case CommandAPRW:
		return "APRW"
	case CommandFPRD:
		return "FPRD"
	case CommandFPWR:
		return "FPWR"
	case CommandFPRW:
		return "FPRW"
	case CommandBRD:
		return "BRD"
	case CommandBWR:
		return "BWR"
	case CommandBRW:
		return "BRW"
	case CommandLRD:
		return "LRD"
	case CommandLWR:
		return "LWR"
	case CommandLRW:
		return "LRW"
	case CommandARMW:
		return "ARMW"
	case CommandFRMW:
		return "FRMW"
	default:
		return fmt.Sprintf("CMD(%d)", uint8(c))
	}
}

const (
	HeaderSize = 10
	WkcSize    = 2

	// Maximum data one datagram can carry inside a standard frame
	MaxDataSize = ethercat.MaxFrameSize - ethercat.FrameHeaderSize - HeaderSize - WkcSize

	moreBit = 1 << 15
)

var (
	ErrDataTooLarge = errors.New("datagram data does not fit in one frame")
	ErrMalformed    = errors.New("malformed datagram frame")
)

// One EtherCAT datagram. Adp and Ado are the two halves of the
// 32 bit address, their meaning depends on the command.
type Datagram struct {
	Command Command
	Index   uint8
	Adp     uint16
	Ado     uint16
	Irq     uint16
	Data    []byte
	Wkc     uint16
}

func (d *Datagram) size() int {
	return HeaderSize + len(d.Data) + WkcSize
}

// Encode datagrams into a single EtherCAT frame
func MarshalFrame(datagrams []*Datagram) (ethercat.Frame, error) {
	area := 0
	for _, d := range datagrams {
		area += d.size()
	}
	if area > ethercat.MaxFrameSize-ethercat.FrameHeaderSize {
		return ethercat.Frame{}, ErrDataTooLarge
	}
	data := make([]byte, ethercat.FrameHeaderSize+area)
	binary.LittleEndian.PutUint16(data, ethercat.NewFrameHeader(area))
	offset := ethercat.FrameHeaderSize
	for i, d := range datagrams {
		data[offset] = uint8(d.Command)
		data[offset+1] = d.Index
		binary.LittleEndian.PutUint16(data[offset+2:], d.Adp)
		binary.LittleEndian.PutUint16(data[offset+4:], d.Ado)
		length := uint16(len(d.Data) & 0x07FF)
		if i < len(datagrams)-1 {
			length |= moreBit
		}
		binary.LittleEndian.PutUint16(data[offset+6:], length)
		binary.LittleEndian.PutUint16(data[offset+8:], d.Irq)
		copy(data[offset+HeaderSize:], d.Data)
		binary.LittleEndian.PutUint16(data[offset+HeaderSize+len(d.Data):], d.Wkc)
		offset += d.size()
	}
	return ethercat.Frame{Data: data}, nil
}

// Decode all datagrams of an EtherCAT frame
func UnmarshalFrame(frame ethercat.Frame) ([]*Datagram, error) {
	area := frame.DatagramLength()
	if area == 0 || ethercat.FrameHeaderSize+area > len(frame.Data) {
		return nil, ErrMalformed
	}
	data := frame.Data[ethercat.FrameHeaderSize : ethercat.FrameHeaderSize+area]
	datagrams := []*Datagram{}
	more := true
	for more {
		if len(data) < HeaderSize+WkcSize {
			return nil, ErrMalformed
		}
		length := binary.LittleEndian.Uint16(data[6:])
		size := int(length&0x07FF)
		if len(data) < HeaderSize+size+WkcSize {
			return nil, ErrMalformed
		}
		d := &Datagram{
			Command: Command(data[0]),
			Index:   data[1],
			Adp:     binary.LittleEndian.Uint16(data[2:]),
			Ado:     binary.LittleEndian.Uint16(data[4:]),
			Irq:     binary.LittleEndian.Uint16(data[8:]),
			Data:    data[HeaderSize : HeaderSize+size],
			Wkc:     binary.LittleEndian.Uint16(data[HeaderSize+size:]),
		}
		datagrams = append(datagrams, d)
		more = length&moreBit != 0
		data = data[HeaderSize+size+WkcSize:]
	}
	return datagrams, nil
}
