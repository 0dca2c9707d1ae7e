package foe

import (
	"log/slog"

	"github.com/samsamfire/goethercat/pkg/mailbox"
)

// Client drives FoE transfers against a single slave.
// Transfers are blocking and half duplex, one transfer at a time.
// Callers must serialize access per slave.
type Client struct {
	logger   *slog.Logger
	mbx      mailbox.Transport
	slave    uint16
	progress ProgressFunc
}

func NewClient(slave uint16, mbx mailbox.Transport, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		logger: logger.With("service", "[FOE]", "slave", slave),
		mbx:    mbx,
		slave:  slave,
	}
}

// Install a progress callback, nil removes it
func (c *Client) SetProgressCallback(progress ProgressFunc) {
	c.progress = progress
}

// Largest data segment the slave accepts in one FoE packet
func (c *Client) maxData() int {
	return c.mbx.DataSize() - overhead
}

// Empty the slave mailbox if something stale is in it
func (c *Client) drain() {
	buf, err := c.mbx.Receive(0)
	if err == nil {
		c.logger.Debug("drained stale mailbox frame")
		c.mbx.Put(buf)
	}
}

// Encode and send one packet, advancing the session counter.
// The mailbox takes the buffer on success, on error it is
// released here.
func (c *Client) send(p Packet) error {
	buf := c.mbx.Get()
	err := p.encode(buf, c.mbx.NextCount())
	if err != nil {
		c.mbx.Put(buf)
		return err
	}
	c.logger.Debug("[TX]", "op", p.Op.String(), "num", p.Num, "size", len(p.Payload))
	err = c.mbx.Send(buf, sendTimeout)
	if err != nil {
		c.mbx.Put(buf)
	}
	return err
}
