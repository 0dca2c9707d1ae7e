package master

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	ethercat "github.com/samsamfire/goethercat"
	_ "github.com/samsamfire/goethercat/pkg/nic/all"

	"github.com/samsamfire/goethercat/pkg/config"
	"github.com/samsamfire/goethercat/pkg/datagram"
	"github.com/samsamfire/goethercat/pkg/foe"
	"github.com/samsamfire/goethercat/pkg/mailbox"
)

var (
	ErrSlaveExists   = errors.New("slave address already exists on network")
	ErrSlaveNotFound = errors.New("slave address not found, add it first")
	ErrNoFoE         = errors.New("slave does not announce foe support")
)

// A Master is the main object of this package.
// It owns the link, the slave table and the per slave mailbox
// plumbing, and exposes file transfers against the slaves.
type Master struct {
	logger   *slog.Logger
	bm       *ethercat.BusManager
	ex       *datagram.Exchanger
	mu       sync.Mutex
	slaves   map[uint16]*slaveAccess
	progress foe.ProgressFunc
}

// Per slave plumbing. Transfers against one slave are serialized
// with the access mutex, two goroutines on the same slave would
// corrupt the mailbox counter.
type slaveAccess struct {
	mu    sync.Mutex
	slave *ethercat.Slave
	mbx   *mailbox.Client
	foe   *foe.Client
}

// Create a new Master using the given bus
// A nil bus can be provided and created later on during Connect
func NewMaster(bus ethercat.Bus) *Master {
	bm := ethercat.NewBusManager(bus)
	return &Master{
		logger: slog.Default(),
		bm:     bm,
		ex:     datagram.NewExchanger(bm, nil),
		slaves: map[uint16]*slaveAccess{},
	}
}

func (m *Master) SetLogger(logger *slog.Logger) {
	m.logger = logger
	m.bm.SetLogger(logger)
	m.ex = datagram.NewExchanger(m.bm, logger)
}

// Connect to the network, this should be called before anything else.
// Custom backend is possible using a custom "Bus" interface.
// Otherwise it expects an interface type and a channel,
// e.g. "raw", "eth0".
func (m *Master) Connect(args ...any) error {
	if len(args) < 2 && m.bm.Bus() == nil {
		return errors.New("either provide custom backend, or provide interface type and channel")
	}
	var bus ethercat.Bus
	var err error
	if m.bm.Bus() == nil {
		interfaceType, ok := args[0].(string)
		if !ok {
			return fmt.Errorf("expecting string for interface type got : %v", args[0])
		}
		channel, ok := args[1].(string)
		if !ok {
			return fmt.Errorf("expecting string for channel got : %v", args[1])
		}
		bus, err = ethercat.NewBus(interfaceType, channel)
		if err != nil {
			return err
		}
		m.bm.SetBus(bus)
	} else {
		bus = m.bm.Bus()
	}
	err = bus.Connect(args...)
	if err != nil {
		return err
	}
	return bus.Subscribe(m.bm)
}

func (m *Master) Disconnect() {
	bus := m.bm.Bus()
	if bus != nil {
		bus.Disconnect()
	}
}

// Count the slaves present on the network with a broadcast read.
// The working counter of a BRD equals the number of slaves that
// processed it.
func (m *Master) CountSlaves(timeout time.Duration) (int, error) {
	_, wkc, err := m.ex.BRD(0, 1, timeout)
	if err != nil {
		return 0, err
	}
	return int(wkc), nil
}

// Add a slave to the master slave table
func (m *Master) AddSlave(slave *ethercat.Slave) error {
	if slave.MailboxWriteLength <= mailbox.HeaderSize+6 {
		return foe.ErrMailboxLength
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.slaves[slave.Address]; exists {
		return ErrSlaveExists
	}
	access := &slaveAccess{
		slave: slave,
		mbx:   mailbox.NewClient(m.ex, slave, m.logger),
	}
	access.foe = foe.NewClient(slave.Address, access.mbx, m.logger)
	if m.progress != nil {
		access.foe.SetProgressCallback(m.progress)
	}
	m.slaves[slave.Address] = access
	m.logger.Info("added slave",
		"address", slave.Address,
		"name", slave.Name,
		"mailbox", slave.MailboxWriteLength,
	)
	return nil
}

// Add all slaves of a parsed network description
func (m *Master) AddSlavesFromConfig(network *config.Network) error {
	for _, s := range network.Slaves {
		err := m.AddSlave(&ethercat.Slave{
			Address:            s.Address,
			Name:               s.Name,
			Protocols:          s.Protocols,
			MailboxWriteOffset: s.MailboxWriteOffset,
			MailboxWriteLength: s.MailboxWriteLength,
			MailboxReadOffset:  s.MailboxReadOffset,
			MailboxReadLength:  s.MailboxReadLength,
		})
		if err != nil {
			return fmt.Errorf("slave %v : %w", s.Address, err)
		}
	}
	return nil
}

func (m *Master) Slave(address uint16) (*ethercat.Slave, error) {
	access, err := m.access(address)
	if err != nil {
		return nil, err
	}
	return access.slave, nil
}

func (m *Master) access(address uint16) (*slaveAccess, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	access, ok := m.slaves[address]
	if !ok {
		return nil, ErrSlaveNotFound
	}
	return access, nil
}

// Install a progress callback invoked after every transferred
// segment, on all present and future slaves
func (m *Master) SetProgressCallback(progress foe.ProgressFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.progress = progress
	for _, access := range m.slaves {
		access.foe.SetProgressCallback(progress)
	}
}

// Read a file from a slave into buffer, blocking.
// Returns the number of bytes read, which reflects partial
// content when an error occurred mid transfer.
func (m *Master) ReadFile(address uint16, filename string, password uint32, buffer []byte, timeout time.Duration) (int, error) {
	access, err := m.access(address)
	if err != nil {
		return 0, err
	}
	if !access.slave.SupportsFoE() {
		return 0, ErrNoFoE
	}
	access.mu.Lock()
	defer access.mu.Unlock()
	return access.foe.Read(filename, password, buffer, timeout)
}

// Write data as a file to a slave, blocking
func (m *Master) WriteFile(address uint16, filename string, password uint32, data []byte, timeout time.Duration) error {
	access, err := m.access(address)
	if err != nil {
		return err
	}
	if !access.slave.SupportsFoE() {
		return ErrNoFoE
	}
	access.mu.Lock()
	defer access.mu.Unlock()
	return access.foe.Write(filename, password, data, timeout)
}
