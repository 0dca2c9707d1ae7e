package config

import (
	"errors"
	"testing"

	ethercat "github.com/samsamfire/goethercat"
	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	network, err := Load("testdata/network.ini")
	assert.Nil(t, err)
	assert.Equal(t, "eth0", network.Master.Interface)
	assert.Equal(t, "raw", network.Master.Backend)
	assert.Len(t, network.Slaves, 2)

	drive := network.Slaves[0]
	assert.EqualValues(t, 1, drive.Address)
	assert.Equal(t, "drive", drive.Name)
	assert.Equal(t, ethercat.ProtocolCoE|ethercat.ProtocolFoE, drive.Protocols)
	assert.EqualValues(t, 0x1000, drive.MailboxWriteOffset)
	assert.EqualValues(t, 128, drive.MailboxWriteLength)
	assert.EqualValues(t, 0x1080, drive.MailboxReadOffset)
	assert.EqualValues(t, 128, drive.MailboxReadLength)

	io := network.Slaves[1]
	assert.EqualValues(t, 2, io.Address)
	assert.Equal(t, ethercat.ProtocolFoE, io.Protocols)
	assert.EqualValues(t, 256, io.MailboxWriteLength)
}

func TestLoadFromBytes(t *testing.T) {
	description := []byte(`
[master]
interface = eth1

[slave.10]
name = gateway
mailbox_out_offset = 4096
mailbox_out_size = 64
mailbox_in_offset = 4224
mailbox_in_size = 64
`)
	network, err := Load(description)
	assert.Nil(t, err)
	assert.Equal(t, "eth1", network.Master.Interface)
	// Backend defaults to raw
	assert.Equal(t, "raw", network.Master.Backend)
	assert.Len(t, network.Slaves, 1)
	assert.EqualValues(t, 10, network.Slaves[0].Address)
	// Protocols default to foe
	assert.Equal(t, ethercat.ProtocolFoE, network.Slaves[0].Protocols)
}

func TestLoadMissingMaster(t *testing.T) {
	_, err := Load([]byte(`
[slave.1]
name = drive
mailbox_out_offset = 0x1000
mailbox_out_size = 128
mailbox_in_offset = 0x1080
mailbox_in_size = 128
`))
	assert.Equal(t, ErrNoMasterSection, err)
}

func TestLoadMailboxTooSmall(t *testing.T) {
	_, err := Load([]byte(`
[master]
interface = eth0

[slave.1]
mailbox_out_offset = 0x1000
mailbox_out_size = 12
mailbox_in_offset = 0x1080
mailbox_in_size = 128
`))
	assert.True(t, errors.Is(err, ErrMailboxTooSmall))
}

func TestLoadUnknownProtocol(t *testing.T) {
	_, err := Load([]byte(`
[master]
interface = eth0

[slave.1]
protocols = xoe
mailbox_out_offset = 0x1000
mailbox_out_size = 128
mailbox_in_offset = 0x1080
mailbox_in_size = 128
`))
	assert.NotNil(t, err)
}

func TestLoadBadGeometry(t *testing.T) {
	_, err := Load([]byte(`
[master]
interface = eth0

[slave.1]
mailbox_out_offset = 0x1000
`))
	assert.NotNil(t, err)
}
