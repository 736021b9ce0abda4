package testutils

import (
	"bytes"
	"errors"
	"net"
	"sync"
	"testing"

	"github.com/pior/jbod/wire"
)

// Handler computes the reply for one request. block holds the request block
// for WriteBlock and is the reply block when the returned status has the
// block bit set.
type Handler func(op wire.Opcode, block *wire.Block) wire.Status

// StubServer is a JBOD server stub listening on a loopback port. Each
// accepted connection is served sequentially by the handler.
type StubServer struct {
	t        testing.TB
	listener net.Listener
	handler  Handler
	framing  wire.Framing

	mu       sync.Mutex
	inbound  bytes.Buffer
	requests []wire.Opcode
	wg       sync.WaitGroup
}

// NewStubServer starts a stub server. It is stopped by t.Cleanup.
func NewStubServer(t testing.TB, handler Handler) *StubServer {
	return NewStubServerWithFraming(t, wire.FramingCompact, handler)
}

// NewStubServerWithFraming starts a stub server decoding requests with framing.
func NewStubServerWithFraming(t testing.TB, framing wire.Framing, handler Handler) *StubServer {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to start stub server: %v", err)
	}

	s := &StubServer{
		t:        t,
		listener: listener,
		handler:  handler,
		framing:  framing,
	}

	s.wg.Add(1)
	go s.acceptLoop()

	t.Cleanup(s.Close)
	return s
}

// Addr returns the listening address as host:port.
func (s *StubServer) Addr() string {
	return s.listener.Addr().String()
}

// Port returns the listening port.
func (s *StubServer) Port() uint16 {
	return uint16(s.listener.Addr().(*net.TCPAddr).Port)
}

// Inbound returns every byte received from clients so far.
func (s *StubServer) Inbound() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return bytes.Clone(s.inbound.Bytes())
}

// Requests returns the opcodes received so far.
func (s *StubServer) Requests() []wire.Opcode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]wire.Opcode(nil), s.requests...)
}

// Close stops the listener and waits for connections to finish.
func (s *StubServer) Close() {
	s.listener.Close()
	s.wg.Wait()
}

func (s *StubServer) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.wg.Add(1)
		go s.serve(conn)
	}
}

func (s *StubServer) serve(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	recorder := &recordingReader{conn: conn, s: s}
	var block wire.Block

	for {
		op, _, err := wire.ReadRequest(recorder, s.framing, &block)
		if err != nil {
			if !errors.Is(err, wire.ErrPeerClosed) && !errors.Is(err, net.ErrClosed) {
				s.t.Logf("stub server: %v", err)
			}
			return
		}

		s.mu.Lock()
		s.requests = append(s.requests, op)
		s.mu.Unlock()

		status := s.handler(op, &block)
		if err := wire.WriteFull(conn, wire.AppendResponse(nil, op, status, &block)); err != nil {
			return
		}
	}
}

type recordingReader struct {
	conn net.Conn
	s    *StubServer
}

func (r *recordingReader) Read(b []byte) (int, error) {
	n, err := r.conn.Read(b)
	if n > 0 {
		r.s.mu.Lock()
		r.s.inbound.Write(b[:n])
		r.s.mu.Unlock()
	}
	return n, err
}

// EchoHandler replies success, echoing WriteBlock payloads back with the
// block bit set.
func EchoHandler(op wire.Opcode, block *wire.Block) wire.Status {
	if op.IsWrite() {
		return wire.StatusBlock
	}
	return wire.StatusOK
}

// DiskHandler emulates an array with a seek position. SeekToDisk and
// SeekToBlock take the disk and block from their operands; ReadBlock and
// WriteBlock address the current position.
func DiskHandler() Handler {
	var (
		mu      sync.Mutex
		mounted bool
		disk    uint32
		blk     uint32
		blocks  = map[[2]uint32]wire.Block{}
	)

	return func(op wire.Opcode, block *wire.Block) wire.Status {
		mu.Lock()
		defer mu.Unlock()

		switch op.Command() {
		case wire.CmdMount:
			if mounted {
				return wire.StatusFailed
			}
			mounted = true
			return wire.StatusOK
		case wire.CmdUnmount:
			if !mounted {
				return wire.StatusFailed
			}
			mounted = false
			return wire.StatusOK
		}

		if !mounted {
			return wire.StatusFailed
		}

		switch op.Command() {
		case wire.CmdSeekToDisk:
			disk = op.Operands()
			return wire.StatusOK
		case wire.CmdSeekToBlock:
			blk = op.Operands()
			return wire.StatusOK
		case wire.CmdReadBlock:
			*block = blocks[[2]uint32{disk, blk}]
			return wire.StatusBlock
		case wire.CmdWriteBlock:
			blocks[[2]uint32{disk, blk}] = *block
			return wire.StatusOK
		}
		return wire.StatusFailed
	}
}
