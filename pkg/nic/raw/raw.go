package raw

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"

	ethercat "github.com/samsamfire/goethercat"
	"golang.org/x/sys/unix"
)

// Raw socket link backend, AF_PACKET bound to one interface.
// This expects the interface to be up and requires CAP_NET_RAW.

func init() {
	ethercat.RegisterInterface("raw", NewBus)
}

const ethernetHeaderSize = 14

var DefaultTimeVal = unix.Timeval{Sec: 0, Usec: 100000}

// Destination of outgoing EtherCAT frames, slaves process frames
// regardless of the MAC so broadcast is used
var broadcast = [6]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

type Bus struct {
	f          *os.File
	fd         int
	source     [6]byte
	rxCallback ethercat.FrameListener
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	logger     *slog.Logger
}

func htons(v uint16) uint16 {
	return v<<8 | v>>8
}

// Create a new raw socket bus on the given interface, e.g. eth0
func NewBus(channel string) (ethercat.Bus, error) {
	iface, err := net.InterfaceByName(channel)
	if err != nil {
		return nil, err
	}
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(htons(ethercat.EtherType)))
	if err != nil {
		return nil, fmt.Errorf("failed to create raw socket : %v", err)
	}
	err = unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &DefaultTimeVal)
	if err != nil {
		return nil, fmt.Errorf("failed to set read timeout %v", err)
	}
	addr := &unix.SockaddrLinklayer{Protocol: htons(ethercat.EtherType), Ifindex: iface.Index}
	if err := unix.Bind(fd, addr); err != nil {
		return nil, err
	}
	bus := &Bus{fd: fd, logger: slog.Default()}
	copy(bus.source[:], iface.HardwareAddr)
	return bus, nil
}

// "Connect" implementation of Bus interface
func (b *Bus) Connect(...any) error {
	var ctx context.Context
	ctx, b.cancel = context.WithCancel(context.Background())
	b.f = os.NewFile(uintptr(b.fd), fmt.Sprintf("fd %d", b.fd))
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.processIncoming(ctx)
	}()
	return nil
}

// "Disconnect" implementation of Bus interface
func (b *Bus) Disconnect() error {
	if b.cancel == nil {
		return nil
	}
	b.cancel()
	b.wg.Wait()
	return b.f.Close()
}

// "Send" implementation of Bus interface
// Wraps the EtherCAT frame in an Ethernet header
func (b *Bus) Send(frame ethercat.Frame) error {
	if len(frame.Data) > ethercat.MaxFrameSize {
		return ethercat.ErrFrameTooLarge
	}
	packet := make([]byte, ethernetHeaderSize+len(frame.Data))
	copy(packet, broadcast[:])
	copy(packet[6:], b.source[:])
	binary.BigEndian.PutUint16(packet[12:], ethercat.EtherType)
	copy(packet[ethernetHeaderSize:], frame.Data)
	_, err := b.f.Write(packet)
	return err
}

// "Subscribe" implementation of Bus interface
func (b *Bus) Subscribe(rxCallback ethercat.FrameListener) error {
	b.rxCallback = rxCallback
	return nil
}

func (b *Bus) processIncoming(ctx context.Context) {
	buffer := make([]byte, ethernetHeaderSize+ethercat.MaxFrameSize)
	for {
		select {
		case <-ctx.Done():
			return
		default:
			n, err := b.f.Read(buffer)
			if err != nil {
				if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, unix.EAGAIN) {
					continue
				}
				b.logger.Warn("read error", "err", err)
				continue
			}
			if n < ethernetHeaderSize+ethercat.FrameHeaderSize {
				continue
			}
			if binary.BigEndian.Uint16(buffer[12:]) != ethercat.EtherType {
				continue
			}
			if b.rxCallback != nil {
				data := make([]byte, n-ethernetHeaderSize)
				copy(data, buffer[ethernetHeaderSize:n])
				b.rxCallback.Handle(ethercat.Frame{Data: data})
			}
		}
	}
}
