package testutils

import (
	"bytes"
	"io"
	"net"
	"sync"
	"time"
)

// Step is one scripted result of a Read or Write call on ConnectionMock.
type Step struct {
	Data []byte // Bytes returned by Read; for Write only len(Data) matters
	N    int    // Bytes accepted by Write (ignored for reads)
	Err  error  // Error returned with the step
}

// ConnectionMock is a mock implementation of net.Conn for testing.
//
// Reads are served from the scripted ReadSteps first, then from the joined
// response data. Writes are limited by WriteSteps when scripted and recorded
// in full otherwise.
type ConnectionMock struct {
	mu sync.Mutex

	readSteps  []Step
	writeSteps []Step
	readBuf    *bytes.Buffer
	writeBuf   *bytes.Buffer

	readCalls  int
	writeCalls int
	closed     bool
}

// NewConnectionMock creates a new mock connection with pre-configured response data
func NewConnectionMock(responseData ...[]byte) *ConnectionMock {
	return &ConnectionMock{
		readBuf:  bytes.NewBuffer(bytes.Join(responseData, nil)),
		writeBuf: &bytes.Buffer{},
	}
}

// ScriptReads sets the results returned by the next Read calls.
func (m *ConnectionMock) ScriptReads(steps ...Step) *ConnectionMock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readSteps = append(m.readSteps, steps...)
	return m
}

// ScriptWrites sets the results returned by the next Write calls.
func (m *ConnectionMock) ScriptWrites(steps ...Step) *ConnectionMock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeSteps = append(m.writeSteps, steps...)
	return m
}

func (m *ConnectionMock) Read(b []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.readCalls++
	if m.closed {
		return 0, net.ErrClosed
	}

	if len(m.readSteps) > 0 {
		step := m.readSteps[0]
		n := copy(b, step.Data)
		if n < len(step.Data) {
			m.readSteps[0].Data = step.Data[n:]
			return n, nil
		}
		m.readSteps = m.readSteps[1:]
		return n, step.Err
	}

	if m.readBuf.Len() == 0 {
		return 0, io.EOF
	}
	return m.readBuf.Read(b)
}

func (m *ConnectionMock) Write(b []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.writeCalls++
	if m.closed {
		return 0, net.ErrClosed
	}

	if len(m.writeSteps) > 0 {
		step := m.writeSteps[0]
		m.writeSteps = m.writeSteps[1:]
		n := min(step.N, len(b))
		m.writeBuf.Write(b[:n])
		return n, step.Err
	}

	return m.writeBuf.Write(b)
}

func (m *ConnectionMock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// IsClosed reports whether Close was called.
func (m *ConnectionMock) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// ReadCalls returns the number of Read calls made so far.
func (m *ConnectionMock) ReadCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readCalls
}

// WriteCalls returns the number of Write calls made so far.
func (m *ConnectionMock) WriteCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writeCalls
}

// Unread returns the number of scripted response bytes not yet read.
func (m *ConnectionMock) Unread() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.readBuf.Len()
	for _, s := range m.readSteps {
		n += len(s.Data)
	}
	return n
}

// Written returns the raw bytes written to the mock connection
func (m *ConnectionMock) Written() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return bytes.Clone(m.writeBuf.Bytes())
}

func (m *ConnectionMock) LocalAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0}
}

func (m *ConnectionMock) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 3333}
}

func (m *ConnectionMock) SetDeadline(t time.Time) error      { return nil }
func (m *ConnectionMock) SetReadDeadline(t time.Time) error  { return nil }
func (m *ConnectionMock) SetWriteDeadline(t time.Time) error { return nil }
