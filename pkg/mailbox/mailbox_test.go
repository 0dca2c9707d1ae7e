package mailbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextCount(t *testing.T) {
	// 3 bit counter, zero reserved : wrap is 7 to 1
	sequence := []uint8{}
	count := uint8(0)
	for i := 0; i < 9; i++ {
		count = NextCount(count)
		sequence = append(sequence, count)
	}
	assert.Equal(t, []uint8{1, 2, 3, 4, 5, 6, 7, 1, 2}, sequence)
}

func TestHeaderRoundTrip(t *testing.T) {
	b := make([]byte, 64)
	in := Header{Length: 20, Address: 0x1001, Priority: 1, Type: TypeWithCount(TypeFoE, 5)}
	PutHeader(b, in)
	out, err := ParseHeader(b)
	assert.Nil(t, err)
	assert.Equal(t, in, out)
	assert.Equal(t, TypeFoE, out.Protocol())
	assert.EqualValues(t, 5, out.Count())
}

func TestHeaderOnWire(t *testing.T) {
	b := make([]byte, 16)
	PutHeader(b, Header{Length: 0x0102, Address: 0x0304, Priority: 0, Type: TypeWithCount(TypeFoE, 2)})
	assert.Equal(t, []byte{0x02, 0x01, 0x04, 0x03, 0x00, 0x24}, b[:6])
}

func TestParseHeaderTooShort(t *testing.T) {
	_, err := ParseHeader([]byte{1, 2, 3})
	assert.Equal(t, ErrHeaderLength, err)
}

func TestParseHeaderLengthOverflow(t *testing.T) {
	b := make([]byte, 10)
	PutHeader(b, Header{Length: 32, Type: TypeFoE})
	_, err := ParseHeader(b)
	assert.Equal(t, ErrHeaderLength, err)
}

func TestPoolBalance(t *testing.T) {
	pool := NewPool(32, 2)
	a := pool.Get()
	b := pool.Get()
	// Pool grows past its preallocated capacity
	c := pool.Get()
	assert.Equal(t, 3, pool.Outstanding())
	pool.Put(a)
	pool.Put(b)
	pool.Put(c)
	assert.Equal(t, 0, pool.Outstanding())
}

func TestPoolReturnsZeroedBuffers(t *testing.T) {
	pool := NewPool(8, 1)
	buf := pool.Get()
	for i := range buf.Data {
		buf.Data[i] = 0xFF
	}
	// Encoders may trim the slice to the frame size
	buf.Data = buf.Data[:4]
	pool.Put(buf)

	buf = pool.Get()
	assert.Len(t, buf.Data, 8)
	assert.Equal(t, make([]byte, 8), buf.Data)
	pool.Put(buf)
}
