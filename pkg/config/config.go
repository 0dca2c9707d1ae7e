// Network description parsing, .ini format
package config

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	ethercat "github.com/samsamfire/goethercat"
	"github.com/samsamfire/goethercat/pkg/mailbox"
	"gopkg.in/ini.v1"
)

var (
	ErrNoMasterSection = errors.New("missing [master] section")
	ErrMailboxTooSmall = errors.New("mailbox length leaves no room for foe data")
)

var matchSlaveRegExp = regexp.MustCompile(`^slave\.(\d+)$`)

type Master struct {
	Interface string
	Backend   string
}

type Slave struct {
	Address            uint16
	Name               string
	Protocols          uint16
	MailboxWriteOffset uint16
	MailboxWriteLength uint16
	MailboxReadOffset  uint16
	MailboxReadLength  uint16
}

type Network struct {
	Master Master
	Slaves []Slave
}

// Parse a network description file
// file can be either a path or an *os.File or []byte
func Load(file any) (*Network, error) {
	iniFile, err := ini.Load(file)
	if err != nil {
		return nil, err
	}
	network := &Network{}

	if !iniFile.HasSection("master") {
		return nil, ErrNoMasterSection
	}
	masterSection := iniFile.Section("master")
	network.Master.Interface = masterSection.Key("interface").String()
	network.Master.Backend = masterSection.Key("backend").MustString("raw")

	for _, section := range iniFile.Sections() {
		match := matchSlaveRegExp.FindStringSubmatch(section.Name())
		if match == nil {
			continue
		}
		address, err := strconv.ParseUint(match[1], 10, 16)
		if err != nil {
			return nil, err
		}
		slave := Slave{Address: uint16(address)}
		slave.Name = section.Key("name").String()
		slave.Protocols, err = parseProtocols(section.Key("protocols").MustString("foe"))
		if err != nil {
			return nil, fmt.Errorf("slave %v : %w", address, err)
		}
		geometry := []struct {
			key   string
			field *uint16
		}{
			{"mailbox_out_offset", &slave.MailboxWriteOffset},
			{"mailbox_out_size", &slave.MailboxWriteLength},
			{"mailbox_in_offset", &slave.MailboxReadOffset},
			{"mailbox_in_size", &slave.MailboxReadLength},
		}
		for _, g := range geometry {
			value, err := strconv.ParseUint(section.Key(g.key).Value(), 0, 16)
			if err != nil {
				return nil, fmt.Errorf("slave %v : key %v : %w", address, g.key, err)
			}
			*g.field = uint16(value)
		}
		// A mailbox must fit the two headers plus at least one
		// octet of data for a transfer to make progress
		if slave.MailboxWriteLength <= mailbox.HeaderSize+6 {
			return nil, fmt.Errorf("slave %v : %w", address, ErrMailboxTooSmall)
		}
		network.Slaves = append(network.Slaves, slave)
	}
	return network, nil
}

func parseProtocols(value string) (uint16, error) {
	var protocols uint16
	for _, name := range strings.Split(value, ",") {
		switch strings.TrimSpace(strings.ToLower(name)) {
		case "":
		case "aoe":
			protocols |= ethercat.ProtocolAoE
		case "eoe":
			protocols |= ethercat.ProtocolEoE
		case "coe":
			protocols |= ethercat.ProtocolCoE
		case "foe":
			protocols |= ethercat.ProtocolFoE
		case "soe":
			protocols |= ethercat.ProtocolSoE
		default:
			return 0, fmt.Errorf("unknown protocol : %v", name)
		}
	}
	return protocols, nil
}
