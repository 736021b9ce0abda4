package wire

import (
	"bytes"
	"io"
)

// chunkReader returns data in chunks of the given sizes, then io.EOF.
// A chunk size of 0 produces a (0, nil) result.
type chunkReader struct {
	data   []byte
	chunks []int
	errAt  int   // index of the chunk returning err, -1 for none
	err    error // error returned with chunk errAt
	calls  int
}

func newChunkReader(data []byte, chunks ...int) *chunkReader {
	return &chunkReader{data: data, chunks: chunks, errAt: -1}
}

func (r *chunkReader) Read(b []byte) (int, error) {
	call := r.calls
	r.calls++

	if call == r.errAt {
		return 0, r.err
	}
	if len(r.data) == 0 {
		return 0, io.EOF
	}

	size := len(r.data)
	if call < len(r.chunks) {
		size = r.chunks[call]
	}
	size = min(size, len(b), len(r.data))

	n := copy(b, r.data[:size])
	r.data = r.data[n:]
	return n, nil
}

// chunkWriter accepts at most the given number of bytes per call.
type chunkWriter struct {
	bytes.Buffer
	chunks []int
	errAt  int
	err    error
	calls  int
}

func newChunkWriter(chunks ...int) *chunkWriter {
	return &chunkWriter{chunks: chunks, errAt: -1}
}

func (w *chunkWriter) Write(b []byte) (int, error) {
	call := w.calls
	w.calls++

	if call == w.errAt {
		return 0, w.err
	}

	size := len(b)
	if call < len(w.chunks) {
		size = min(w.chunks[call], len(b))
	}
	return w.Buffer.Write(b[:size])
}

func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7 + 3)
	}
	return b
}

func filledBlock(v byte) *Block {
	var b Block
	b.Fill(v)
	return &b
}
