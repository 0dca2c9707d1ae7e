package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/samsamfire/goethercat/pkg/config"
	"github.com/samsamfire/goethercat/pkg/master"
)

var DefaultTimeout = 100 * time.Millisecond

const usage = `usage : foectl [options] read|write <remote file> <local file>

Transfers a file to or from an EtherCAT slave with FoE.
The network layout is taken from the description file, see -c.
`

func main() {
	configPath := flag.String("c", "network.ini", "network description file")
	slaveAddress := flag.Int("s", 1, "slave station address")
	password := flag.Uint("p", 0, "foe password")
	timeout := flag.Duration("t", DefaultTimeout, "timeout per mailbox cycle")
	readSize := flag.Int("size", 1<<20, "buffer size for read transfers")
	verbose := flag.Bool("v", false, "verbose output")
	flag.Parse()

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}
	if flag.NArg() != 3 {
		fmt.Print(usage)
		os.Exit(1)
	}
	command := flag.Arg(0)
	remoteFile := flag.Arg(1)
	localFile := flag.Arg(2)

	network, err := config.Load(*configPath)
	if err != nil {
		log.Errorf("could not load network description : %v", err)
		os.Exit(1)
	}

	m := master.NewMaster(nil)
	err = m.Connect(network.Master.Backend, network.Master.Interface)
	if err != nil {
		log.Errorf("could not connect to %v via %v : %v", network.Master.Interface, network.Master.Backend, err)
		os.Exit(1)
	}
	defer m.Disconnect()

	err = m.AddSlavesFromConfig(network)
	if err != nil {
		log.Errorf("invalid network description : %v", err)
		os.Exit(1)
	}

	m.SetProgressCallback(func(slave uint16, packet uint32, size int) {
		log.Infof("slave %v : packet %v, %v bytes", slave, packet, size)
	})

	switch command {
	case "write":
		data, err := os.ReadFile(localFile)
		if err != nil {
			log.Errorf("could not read %v : %v", localFile, err)
			os.Exit(1)
		}
		start := time.Now()
		err = m.WriteFile(uint16(*slaveAddress), remoteFile, uint32(*password), data, *timeout)
		if err != nil {
			log.Errorf("write failed : %v", err)
			os.Exit(1)
		}
		log.Infof("wrote %v bytes in %v", len(data), time.Since(start))

	case "read":
		buffer := make([]byte, *readSize)
		start := time.Now()
		n, err := m.ReadFile(uint16(*slaveAddress), remoteFile, uint32(*password), buffer, *timeout)
		if err != nil {
			log.Errorf("read failed after %v bytes : %v", n, err)
			os.Exit(1)
		}
		err = os.WriteFile(localFile, buffer[:n], 0644)
		if err != nil {
			log.Errorf("could not write %v : %v", localFile, err)
			os.Exit(1)
		}
		log.Infof("read %v bytes in %v", n, time.Since(start))

	default:
		fmt.Print(usage)
		os.Exit(1)
	}
}
