package mailbox

import (
	"log/slog"
	"time"

	ethercat "github.com/samsamfire/goethercat"
	"github.com/samsamfire/goethercat/pkg/datagram"
)

const (
	// Timeout of one datagram round trip while polling
	DefaultCycleTimeout = 2 * time.Millisecond
	// Idle time between two polls of the same mailbox
	DefaultPollInterval = 1 * time.Millisecond
)

// Client is the polling mailbox transport for one slave.
// Sending writes the full write mailbox area with FPWR, the slave
// accepts it with wkc 1 when its mailbox is free. Receiving reads
// the full read mailbox area with FPRD until the slave presents a
// frame. Implements the Transport interface.
type Client struct {
	logger       *slog.Logger
	ex           *datagram.Exchanger
	slave        *ethercat.Slave
	pool         *Pool
	cycleTimeout time.Duration
	pollInterval time.Duration
}

func NewClient(ex *datagram.Exchanger, slave *ethercat.Slave, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	size := int(slave.MailboxWriteLength)
	if int(slave.MailboxReadLength) > size {
		size = int(slave.MailboxReadLength)
	}
	return &Client{
		logger:       logger.With("service", "[MBX]", "slave", slave.Address),
		ex:           ex,
		slave:        slave,
		pool:         NewPool(size, 2),
		cycleTimeout: DefaultCycleTimeout,
		pollInterval: DefaultPollInterval,
	}
}

func (c *Client) Get() *Buffer {
	return c.pool.Get()
}

func (c *Client) Put(buf *Buffer) {
	c.pool.Put(buf)
}

func (c *Client) NextCount() uint8 {
	c.slave.MailboxCount = NextCount(c.slave.MailboxCount)
	return c.slave.MailboxCount
}

func (c *Client) DataSize() int {
	return int(c.slave.MailboxWriteLength)
}

// Pool backing the client buffers, exposed for diagnostics
func (c *Client) Pool() *Pool {
	return c.pool
}

// Send a mailbox frame to the slave, blocking.
// The buffer is consumed on success, on error it stays with the
// caller and must still be released.
func (c *Client) Send(buf *Buffer, timeout time.Duration) error {
	if len(buf.Data) > int(c.slave.MailboxWriteLength) {
		return ErrBufferSize
	}
	// The slave expects a write of the complete mailbox area
	out := buf.Data
	if len(out) < int(c.slave.MailboxWriteLength) {
		padded := make([]byte, c.slave.MailboxWriteLength)
		copy(padded, out)
		out = padded
	}
	deadline := time.Now().Add(timeout)
	for {
		wkc, err := c.ex.FPWR(c.slave.Address, c.slave.MailboxWriteOffset, out, c.cycleTimeout)
		if err != nil && err != ethercat.ErrTimeout {
			return err
		}
		if wkc > 0 {
			c.logger.Debug("[TX] mailbox frame", "size", len(buf.Data))
			c.pool.Put(buf)
			return nil
		}
		if !time.Now().Before(deadline) {
			return ethercat.ErrTimeout
		}
		time.Sleep(c.pollInterval)
	}
}

// Receive one mailbox frame from the slave, blocking up to timeout.
// A zero timeout polls exactly once, which is used to drain a
// stale mailbox before starting a transfer.
func (c *Client) Receive(timeout time.Duration) (*Buffer, error) {
	deadline := time.Now().Add(timeout)
	for {
		data, wkc, err := c.ex.FPRD(c.slave.Address, c.slave.MailboxReadOffset, int(c.slave.MailboxReadLength), c.cycleTimeout)
		if err != nil && err != ethercat.ErrTimeout {
			return nil, err
		}
		if wkc > 0 {
			header, err := ParseHeader(data)
			if err == nil && header.Length > 0 {
				buf := c.pool.Get()
				copy(buf.Data, data)
				c.logger.Debug("[RX] mailbox frame",
					"protocol", header.Protocol(),
					"count", header.Count(),
					"length", header.Length,
				)
				return buf, nil
			}
		}
		if timeout == 0 || !time.Now().Before(deadline) {
			return nil, ethercat.ErrTimeout
		}
		time.Sleep(c.pollInterval)
	}
}
