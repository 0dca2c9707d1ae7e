package virtual

import (
	"errors"
	"log/slog"
	"net"
	"sync"
)

// Broker reflects every frame received from one client to all the
// other connected clients, mimicking frames circulating through a
// slave chain. Counterpart of the virtualcan server.
type Broker struct {
	logger  *slog.Logger
	mu      sync.Mutex
	ln      net.Listener
	clients map[net.Conn]bool
	wg      sync.WaitGroup
}

// Start a broker on the given address, e.g. localhost:18000
func NewBroker(address string) (*Broker, error) {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}
	broker := &Broker{
		logger:  slog.Default(),
		ln:      ln,
		clients: map[net.Conn]bool{},
	}
	broker.wg.Add(1)
	go func() {
		defer broker.wg.Done()
		broker.accept()
	}()
	return broker, nil
}

func (b *Broker) Addr() string {
	return b.ln.Addr().String()
}

func (b *Broker) Close() error {
	err := b.ln.Close()
	b.mu.Lock()
	for conn := range b.clients {
		conn.Close()
	}
	b.mu.Unlock()
	b.wg.Wait()
	return err
}

func (b *Broker) accept() {
	for {
		conn, err := b.ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				b.logger.Warn("accept error", "err", err)
			}
			return
		}
		b.mu.Lock()
		b.clients[conn] = true
		b.mu.Unlock()
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			b.serve(conn)
		}()
	}
}

func (b *Broker) serve(conn net.Conn) {
	defer func() {
		b.mu.Lock()
		delete(b.clients, conn)
		b.mu.Unlock()
		conn.Close()
	}()
	for {
		frame, err := readFrame(conn)
		if err != nil {
			return
		}
		out := serializeFrame(frame)
		b.mu.Lock()
		for other := range b.clients {
			if other == conn {
				continue
			}
			other.Write(out)
		}
		b.mu.Unlock()
	}
}
