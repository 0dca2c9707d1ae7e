package ethercat

import (
	"log/slog"
	"sync"
	"time"
)

// Bus manager is a wrapper around the network link interface
// Used by the EtherCAT stack to correlate returning frames with
// their requests, via the 8 bit datagram index.
type BusManager struct {
	logger  *slog.Logger
	mu      sync.Mutex
	bus     Bus
	pending map[uint8]chan Frame
}

func NewBusManager(bus Bus) *BusManager {
	return &BusManager{
		logger:  slog.Default(),
		bus:     bus,
		pending: make(map[uint8]chan Frame),
	}
}

func (bm *BusManager) SetLogger(logger *slog.Logger) {
	bm.logger = logger
}

// Set bus
func (bm *BusManager) SetBus(bus Bus) {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	bm.bus = bus
}

func (bm *BusManager) Bus() Bus {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	return bm.bus
}

// Implements the FrameListener interface
// This handles all received EtherCAT frames from Bus
// [listener.Handle] should not be blocking !
func (bm *BusManager) Handle(frame Frame) {

	index, ok := frame.FirstIndex()
	if !ok {
		bm.logger.Warn("received runt frame", "size", len(frame.Data))
		return
	}

	bm.mu.Lock()
	waiter := bm.pending[index]
	bm.mu.Unlock()

	if waiter == nil {
		// Frame still circulating after its exchange timed out
		bm.logger.Debug("no pending exchange for frame", "index", index)
		return
	}
	select {
	case waiter <- frame:
	default:
	}
}

// Send a frame on the wire
// Limited error handling
func (bm *BusManager) Send(frame Frame) error {
	bus := bm.Bus()
	if bus == nil {
		return ErrNoBus
	}
	if len(frame.Data) > MaxFrameSize {
		return ErrFrameTooLarge
	}
	err := bus.Send(frame)
	if err != nil {
		bm.logger.Warn("error sending frame", "err", err)
	}
	return err
}

// Send a frame and block until the processed frame returns
// or timeout expires. The frame is matched by the index of
// its first datagram.
func (bm *BusManager) Exchange(frame Frame, index uint8, timeout time.Duration) (Frame, error) {

	waiter := make(chan Frame, 1)
	bm.mu.Lock()
	if _, exists := bm.pending[index]; exists {
		bm.mu.Unlock()
		return Frame{}, ErrIndexInUse
	}
	bm.pending[index] = waiter
	bm.mu.Unlock()

	defer func() {
		bm.mu.Lock()
		delete(bm.pending, index)
		bm.mu.Unlock()
	}()

	err := bm.Send(frame)
	if err != nil {
		return Frame{}, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case response := <-waiter:
		return response, nil
	case <-timer.C:
		return Frame{}, ErrTimeout
	}
}
