package foe

import (
	"time"
)

// Read downloads a file from the slave into buffer, blocking.
// timeout bounds each mailbox cycle, not the whole transfer.
// Returns the number of bytes read. On failure the count still
// reflects the bytes landed in buffer before the error, partial
// content is observable.
func (c *Client) Read(filename string, password uint32, buffer []byte, timeout time.Duration) (int, error) {

	maxdata := c.maxData()
	if maxdata <= 0 {
		return 0, ErrMailboxLength
	}
	c.drain()

	c.logger.Info("read request", "filename", filename)
	err := c.send(newRequest(OpRead, filename, password, maxdata))
	if err != nil {
		return 0, err
	}

	dataread := 0
	var prevpacket uint32

	for {
		buf, err := c.mbx.Receive(timeout)
		if err != nil {
			return dataread, err
		}
		packet, err := decode(buf)
		if err != nil {
			c.mbx.Put(buf)
			return dataread, err
		}

		switch packet.Op {
		case OpData:
			segment := len(packet.Payload)
			number := packet.Num
			c.logger.Debug("[RX]", "op", "DATA", "num", number, "size", segment)
			if number != prevpacket+1 || dataread+segment > len(buffer) {
				c.mbx.Put(buf)
				return dataread, ErrBufferTooSmall
			}
			copy(buffer[dataread:], packet.Payload)
			dataread += segment
			prevpacket = number
			c.mbx.Put(buf)

			err = c.send(newAck(number))
			if c.progress != nil {
				c.progress(c.slave, number, dataread)
			}
			if err != nil {
				return dataread, err
			}
			// EOF is a segment shorter than the negotiated maximum
			if segment < maxdata {
				c.logger.Info("read complete", "filename", filename, "size", dataread)
				return dataread, nil
			}

		case OpError:
			serr := &ServerError{Code: packet.Num, Text: string(packet.Payload)}
			c.mbx.Put(buf)
			c.logger.Warn("slave reported error", "code", serr.Code, "text", serr.Text)
			return dataread, serr

		default:
			c.logger.Warn("unexpected opcode", "op", packet.Op.String())
			c.mbx.Put(buf)
			return dataread, ErrUnexpectedPacket
		}
	}
}
