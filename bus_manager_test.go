package ethercat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// A bus reflecting every frame straight back to the subscriber
type echoBus struct {
	listener FrameListener
	silent   bool
	sent     int
}

func (e *echoBus) Connect(...any) error { return nil }

func (e *echoBus) Disconnect() error { return nil }

func (e *echoBus) Subscribe(listener FrameListener) error {
	e.listener = listener
	return nil
}

func (e *echoBus) Send(frame Frame) error {
	e.sent++
	if e.silent {
		return nil
	}
	e.listener.Handle(frame)
	return nil
}

func testFrame(index uint8) Frame {
	data := make([]byte, FrameHeaderSize+12)
	header := NewFrameHeader(12)
	data[0] = byte(header)
	data[1] = byte(header >> 8)
	data[FrameHeaderSize] = 1 // command
	data[FrameHeaderSize+1] = index
	return Frame{Data: data}
}

func TestExchange(t *testing.T) {
	bus := &echoBus{}
	bm := NewBusManager(bus)
	assert.Nil(t, bus.Subscribe(bm))

	frame := testFrame(0x42)
	response, err := bm.Exchange(frame, 0x42, 10*time.Millisecond)
	assert.Nil(t, err)
	assert.Equal(t, frame.Data, response.Data)
	assert.Equal(t, 1, bus.sent)
}

func TestExchangeTimeout(t *testing.T) {
	bus := &echoBus{silent: true}
	bm := NewBusManager(bus)
	assert.Nil(t, bus.Subscribe(bm))

	_, err := bm.Exchange(testFrame(1), 1, 5*time.Millisecond)
	assert.Equal(t, ErrTimeout, err)

	// The index is free again afterwards
	bus.silent = false
	_, err = bm.Exchange(testFrame(1), 1, 5*time.Millisecond)
	assert.Nil(t, err)
}

func TestSendWithoutBus(t *testing.T) {
	bm := NewBusManager(nil)
	assert.Equal(t, ErrNoBus, bm.Send(testFrame(1)))
}

func TestSendTooLarge(t *testing.T) {
	bm := NewBusManager(&echoBus{})
	err := bm.Send(Frame{Data: make([]byte, MaxFrameSize+1)})
	assert.Equal(t, ErrFrameTooLarge, err)
}

func TestFrameHeader(t *testing.T) {
	frame := testFrame(9)
	assert.Equal(t, 12, frame.DatagramLength())
	index, ok := frame.FirstIndex()
	assert.True(t, ok)
	assert.EqualValues(t, 9, index)

	_, ok = Frame{Data: []byte{0}}.FirstIndex()
	assert.False(t, ok)
}
