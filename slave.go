package ethercat

// Mailbox protocols a slave can announce support for
const (
	ProtocolAoE uint16 = 1 << 0
	ProtocolEoE uint16 = 1 << 1
	ProtocolCoE uint16 = 1 << 2
	ProtocolFoE uint16 = 1 << 3
	ProtocolSoE uint16 = 1 << 4
)

// A Slave is one entry of the master slave table.
// Mailbox geometry is the sync manager layout of the device :
// the write mailbox is master to slave (SM0), the read mailbox
// slave to master (SM1).
type Slave struct {
	// Configured station address
	Address uint16
	Name    string
	// Supported mailbox protocols, bitmask of Protocol* values
	Protocols uint16

	MailboxWriteOffset uint16
	MailboxWriteLength uint16
	MailboxReadOffset  uint16
	MailboxReadLength  uint16

	// Rolling mailbox session counter, 1..7, 0 before first use.
	// Owned by the mailbox layer.
	MailboxCount uint8
}

func (s *Slave) SupportsFoE() bool {
	return s.Protocols&ProtocolFoE != 0
}
