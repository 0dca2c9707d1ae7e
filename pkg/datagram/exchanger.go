package datagram

import (
	"log/slog"
	"sync"
	"time"

	ethercat "github.com/samsamfire/goethercat"
)

// Exchanger provides blocking single datagram round trips on top
// of the bus manager. One round trip sends a frame with one
// datagram and waits for the slaves to hand it back processed.
type Exchanger struct {
	logger *slog.Logger
	bm     *ethercat.BusManager
	mu     sync.Mutex
	index  uint8
}

func NewExchanger(bm *ethercat.BusManager, logger *slog.Logger) *Exchanger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exchanger{logger: logger.With("service", "[DATAGRAM]"), bm: bm}
}

func (e *Exchanger) nextIndex() uint8 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.index++
	return e.index
}

func (e *Exchanger) roundtrip(command Command, adp uint16, ado uint16, data []byte, timeout time.Duration) (*Datagram, error) {

	request := &Datagram{
		Command: command,
		Index:   e.nextIndex(),
		Adp:     adp,
		Ado:     ado,
		Data:    data,
	}
	frame, err := MarshalFrame([]*Datagram{request})
	if err != nil {
		return nil, err
	}
	response, err := e.bm.Exchange(frame, request.Index, timeout)
	if err != nil {
		return nil, err
	}
	datagrams, err := UnmarshalFrame(response)
	if err != nil {
		return nil, err
	}
	for _, d := range datagrams {
		if d.Index == request.Index {
			e.logger.Debug("roundtrip",
				"command", d.Command.String(),
				"adp", adp,
				"ado", ado,
				"wkc", d.Wkc,
			)
			return d, nil
		}
	}
	return nil, ErrMalformed
}

// Broadcast read, returns data, working counter
// With ado 0 the wkc counts the slaves on the network
func (e *Exchanger) BRD(ado uint16, length int, timeout time.Duration) ([]byte, uint16, error) {
	d, err := e.roundtrip(CommandBRD, 0, ado, make([]byte, length), timeout)
	if err != nil {
		return nil, 0, err
	}
	return d.Data, d.Wkc, nil
}

// Configured address read
func (e *Exchanger) FPRD(address uint16, ado uint16, length int, timeout time.Duration) ([]byte, uint16, error) {
	d, err := e.roundtrip(CommandFPRD, address, ado, make([]byte, length), timeout)
	if err != nil {
		return nil, 0, err
	}
	return d.Data, d.Wkc, nil
}

// Configured address write
func (e *Exchanger) FPWR(address uint16, ado uint16, data []byte, timeout time.Duration) (uint16, error) {
	d, err := e.roundtrip(CommandFPWR, address, ado, data, timeout)
	if err != nil {
		return 0, err
	}
	return d.Wkc, nil
}
