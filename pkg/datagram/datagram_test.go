package datagram

import (
	"testing"
	"time"

	ethercat "github.com/samsamfire/goethercat"
	"github.com/stretchr/testify/assert"
)

func TestFrameRoundTrip(t *testing.T) {
	first := &Datagram{
		Command: CommandFPWR,
		Index:   7,
		Adp:     0x1001,
		Ado:     0x1000,
		Data:    []byte{1, 2, 3, 4},
	}
	second := &Datagram{
		Command: CommandBRD,
		Index:   8,
		Data:    make([]byte, 2),
		Wkc:     3,
	}
	frame, err := MarshalFrame([]*Datagram{first, second})
	assert.Nil(t, err)

	index, ok := frame.FirstIndex()
	assert.True(t, ok)
	assert.EqualValues(t, 7, index)

	decoded, err := UnmarshalFrame(frame)
	assert.Nil(t, err)
	assert.Len(t, decoded, 2)
	assert.Equal(t, CommandFPWR, decoded[0].Command)
	assert.EqualValues(t, 0x1001, decoded[0].Adp)
	assert.EqualValues(t, 0x1000, decoded[0].Ado)
	assert.Equal(t, []byte{1, 2, 3, 4}, decoded[0].Data)
	assert.Equal(t, CommandBRD, decoded[1].Command)
	assert.EqualValues(t, 3, decoded[1].Wkc)
}

func TestMarshalTooLarge(t *testing.T) {
	_, err := MarshalFrame([]*Datagram{{Command: CommandLWR, Data: make([]byte, 2000)}})
	assert.Equal(t, ErrDataTooLarge, err)
}

func TestUnmarshalMalformed(t *testing.T) {
	_, err := UnmarshalFrame(ethercat.Frame{Data: []byte{0x20, 0x10, 1, 2}})
	assert.Equal(t, ErrMalformed, err)
}

// A bus emulating a chain of n slaves, every datagram comes back
// with the work counter bumped once per slave
type chainBus struct {
	slaves   int
	listener ethercat.FrameListener
	silent   bool
}

func (c *chainBus) Connect(...any) error { return nil }

func (c *chainBus) Disconnect() error { return nil }

func (c *chainBus) Subscribe(listener ethercat.FrameListener) error {
	c.listener = listener
	return nil
}

func (c *chainBus) Send(frame ethercat.Frame) error {
	if c.silent {
		return nil
	}
	datagrams, err := UnmarshalFrame(frame)
	if err != nil {
		return err
	}
	for _, d := range datagrams {
		switch d.Command {
		case CommandBRD, CommandBWR:
			d.Wkc += uint16(c.slaves)
		case CommandFPRD, CommandFPWR:
			d.Wkc++
			for i := range d.Data {
				d.Data[i] = 0xAB
			}
		}
	}
	response, err := MarshalFrame(datagrams)
	if err != nil {
		return err
	}
	c.listener.Handle(response)
	return nil
}

func newTestExchanger(bus *chainBus) *Exchanger {
	bm := ethercat.NewBusManager(bus)
	bus.Subscribe(bm)
	return NewExchanger(bm, nil)
}

func TestExchangerBRDCountsSlaves(t *testing.T) {
	ex := newTestExchanger(&chainBus{slaves: 3})
	_, wkc, err := ex.BRD(0, 1, 10*time.Millisecond)
	assert.Nil(t, err)
	assert.EqualValues(t, 3, wkc)
}

func TestExchangerFPRD(t *testing.T) {
	ex := newTestExchanger(&chainBus{slaves: 1})
	data, wkc, err := ex.FPRD(0x1001, 0x1080, 4, 10*time.Millisecond)
	assert.Nil(t, err)
	assert.EqualValues(t, 1, wkc)
	assert.Equal(t, []byte{0xAB, 0xAB, 0xAB, 0xAB}, data)
}

func TestExchangerFPWR(t *testing.T) {
	ex := newTestExchanger(&chainBus{slaves: 1})
	wkc, err := ex.FPWR(0x1001, 0x1000, []byte{1, 2, 3}, 10*time.Millisecond)
	assert.Nil(t, err)
	assert.EqualValues(t, 1, wkc)
}

func TestExchangerTimeout(t *testing.T) {
	ex := newTestExchanger(&chainBus{silent: true})
	_, _, err := ex.FPRD(0x1001, 0x1080, 4, 5*time.Millisecond)
	assert.Equal(t, ethercat.ErrTimeout, err)
}

func TestExchangerIndexesAdvance(t *testing.T) {
	bus := &chainBus{slaves: 1}
	ex := newTestExchanger(bus)
	for i := 0; i < 3; i++ {
		_, err := ex.FPWR(1, 0, []byte{0}, 10*time.Millisecond)
		assert.Nil(t, err)
	}
	assert.EqualValues(t, 3, ex.index)
}
