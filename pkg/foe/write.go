package foe

import (
	"fmt"
	"time"
)

// Send cursor of a write transfer. segmentdata remembers the size
// of the last transmitted segment so that a BUSY from the slave can
// rewind exactly one segment, including a final short one.
type writeCursor struct {
	offset      int
	sendpacket  uint32
	segmentdata int
	dofinalzero bool
}

// Write uploads data as a file to the slave, blocking.
// timeout bounds each mailbox cycle, not the whole transfer.
func (c *Client) Write(filename string, password uint32, data []byte, timeout time.Duration) error {

	maxdata := c.maxData()
	if maxdata <= 0 {
		return ErrMailboxLength
	}
	c.drain()

	c.logger.Info("write request", "filename", filename, "size", len(data))
	err := c.send(newRequest(OpWrite, filename, password, maxdata))
	if err != nil {
		return err
	}

	// A zero byte file is still signaled with one empty DATA packet
	cursor := writeCursor{dofinalzero: true}

	for {
		buf, err := c.mbx.Receive(timeout)
		if err != nil {
			return err
		}
		packet, err := decode(buf)
		if err != nil {
			c.mbx.Put(buf)
			return err
		}

		switch packet.Op {
		case OpAck:
			number := packet.Num
			c.mbx.Put(buf)
			c.logger.Debug("[RX]", "op", "ACK", "num", number)
			if number != cursor.sendpacket {
				return ErrPacketNumber
			}
			if c.progress != nil {
				c.progress(c.slave, number, len(data)-cursor.offset)
			}
			done, err := c.sendNextSegment(&cursor, data, maxdata)
			if err != nil {
				return err
			}
			if done {
				c.logger.Info("write complete", "filename", filename, "size", len(data))
				return nil
			}

		case OpBusy:
			c.mbx.Put(buf)
			c.logger.Debug("[RX]", "op", "BUSY", "num", cursor.sendpacket)
			// Resend only if data has been sent before, otherwise
			// there is nothing to rewind
			if cursor.sendpacket == 0 {
				return nil
			}
			// A rewound empty EOF packet has to go out again
			if cursor.segmentdata == 0 {
				cursor.dofinalzero = true
			}
			cursor.offset -= cursor.segmentdata
			cursor.sendpacket--
			done, err := c.sendNextSegment(&cursor, data, maxdata)
			if err != nil {
				return err
			}
			if done {
				c.logger.Info("write complete", "filename", filename, "size", len(data))
				return nil
			}

		case OpError:
			serr := &ServerError{Code: packet.Num, Text: string(packet.Payload)}
			c.mbx.Put(buf)
			c.logger.Warn("slave reported error", "code", serr.Code, "text", serr.Text)
			if serr.Code == errorNotFound {
				return fmt.Errorf("%w : %s", ErrFileNotFound, serr.Text)
			}
			return serr

		default:
			c.logger.Warn("unexpected opcode", "op", packet.Op.String())
			c.mbx.Put(buf)
			return ErrUnexpectedPacket
		}
	}
}

// Transmit the next data segment, or report the transfer done.
// EOF is defined as a packet shorter than maxdata, so when the
// final segment is exactly maxdata an extra zero length packet
// must follow.
func (c *Client) sendNextSegment(cursor *writeCursor, data []byte, maxdata int) (done bool, err error) {

	tsize := len(data) - cursor.offset
	if tsize > maxdata {
		tsize = maxdata
	}
	if tsize == 0 && !cursor.dofinalzero {
		return true, nil
	}
	cursor.dofinalzero = false
	cursor.segmentdata = tsize
	end := cursor.offset + tsize
	if end == len(data) && tsize == maxdata {
		cursor.dofinalzero = true
	}
	cursor.sendpacket++
	err = c.send(newData(cursor.sendpacket, data[cursor.offset:end]))
	cursor.offset = end
	if err != nil {
		return false, err
	}
	return false, nil
}
