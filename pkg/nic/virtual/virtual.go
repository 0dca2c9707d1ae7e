package virtual

import (
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"

	ethercat "github.com/samsamfire/goethercat"
)

// Virtual bus implementation with TCP primarily used for testing.
// This needs a broker server to reflect EtherCAT frames to all
// other connected clients, see [Broker]. A slave simulator connects to
// the same broker and answers the master frames.

func init() {
	ethercat.RegisterInterface("virtual", NewVirtualBus)
}

type Bus struct {
	logger       *slog.Logger
	mu           sync.Mutex
	channel      string
	conn         net.Conn
	receiveOwn   bool
	framehandler ethercat.FrameListener
	stopChan     chan bool
	wg           sync.WaitGroup
	isRunning    bool
}

func NewVirtualBus(channel string) (ethercat.Bus, error) {
	return &Bus{channel: channel, logger: slog.Default(), stopChan: make(chan bool)}, nil
}

// Frames on the TCP stream are length prefixed, 4 bytes big endian
func serializeFrame(frame ethercat.Frame) []byte {
	out := make([]byte, 4+len(frame.Data))
	binary.BigEndian.PutUint32(out, uint32(len(frame.Data)))
	copy(out[4:], frame.Data)
	return out
}

func readFrame(conn net.Conn) (ethercat.Frame, error) {
	prefix := make([]byte, 4)
	_, err := io.ReadFull(conn, prefix)
	if err != nil {
		return ethercat.Frame{}, err
	}
	length := binary.BigEndian.Uint32(prefix)
	if length > uint32(ethercat.MaxFrameSize) {
		return ethercat.Frame{}, ethercat.ErrFrameTooLarge
	}
	data := make([]byte, length)
	_, err = io.ReadFull(conn, data)
	if err != nil {
		return ethercat.Frame{}, err
	}
	return ethercat.Frame{Data: data}, nil
}

// "Connect" to broker e.g. localhost:18000
func (b *Bus) Connect(...any) error {
	conn, err := net.Dial("tcp", b.channel)
	if err != nil {
		return err
	}
	b.conn = conn
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		err := tcpConn.SetNoDelay(true)
		if err != nil {
			return err
		}
	}
	return nil
}

// "Disconnect" from broker
func (b *Bus) Disconnect() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.isRunning {
		close(b.stopChan)
		b.isRunning = false
	}
	if b.conn != nil {
		err := b.conn.Close()
		b.wg.Wait()
		return err
	}
	return nil
}

// "Send" implementation of Bus interface
func (b *Bus) Send(frame ethercat.Frame) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return ethercat.ErrInvalidState
	}
	// Local loopback for a master talking to itself, used in tests
	if b.receiveOwn && b.framehandler != nil {
		b.framehandler.Handle(frame)
	}
	_, err := b.conn.Write(serializeFrame(frame))
	return err
}

// "Subscribe" implementation of Bus interface
func (b *Bus) Subscribe(framehandler ethercat.FrameListener) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.framehandler = framehandler
	if b.isRunning {
		return nil
	}
	b.isRunning = true
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.handleReception()
	}()
	return nil
}

// When true, sent frames are handed back to the local subscriber
func (b *Bus) SetReceiveOwn(receiveOwn bool) {
	b.receiveOwn = receiveOwn
}

func (b *Bus) handleReception() {
	for {
		select {
		case <-b.stopChan:
			return
		default:
			frame, err := readFrame(b.conn)
			if err != nil {
				if !errors.Is(err, net.ErrClosed) && !errors.Is(err, io.EOF) {
					b.logger.Warn("receive error", "err", err)
				}
				return
			}
			b.mu.Lock()
			handler := b.framehandler
			b.mu.Unlock()
			if handler != nil {
				handler.Handle(frame)
			}
		}
	}
}
