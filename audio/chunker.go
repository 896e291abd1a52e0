package audio

import (
	"sync"
	"time"
)

// DefaultChunkInterval is the cadence at which the recording sink receives
// raw capture data.
const DefaultChunkInterval = 100 * time.Millisecond

// Chunker regroups the capture callback's arbitrarily-sized buffers into
// fixed-duration chunks and hands them to a Sink. It does no decoding or
// container work; chunks are raw PCM as captured.
type Chunker struct {
	sink       Sink
	chunkBytes int

	mu  sync.Mutex
	buf []byte
}

// NewChunker creates a chunker emitting interval-sized chunks. A nil sink
// discards everything.
func NewChunker(sink Sink, interval time.Duration) *Chunker {
	if sink == nil {
		sink = Discard{}
	}
	chunkBytes := int(int64(BytesPerSecond) * int64(interval) / int64(time.Second))
	if chunkBytes < 2 {
		chunkBytes = 2
	}
	return &Chunker{sink: sink, chunkBytes: chunkBytes}
}

// Write buffers capture data and emits every completed chunk.
func (c *Chunker) Write(data []byte) {
	c.mu.Lock()
	c.buf = append(c.buf, data...)
	var chunks [][]byte
	for len(c.buf) >= c.chunkBytes {
		chunk := make([]byte, c.chunkBytes)
		copy(chunk, c.buf[:c.chunkBytes])
		c.buf = c.buf[c.chunkBytes:]
		chunks = append(chunks, chunk)
	}
	c.mu.Unlock()

	for _, chunk := range chunks {
		c.sink.Write(chunk)
	}
}

// Flush emits any buffered remainder as a short final chunk and resets.
// Safe to call more than once.
func (c *Chunker) Flush() {
	c.mu.Lock()
	tail := c.buf
	c.buf = nil
	c.mu.Unlock()

	if len(tail) > 0 {
		c.sink.Write(tail)
	}
}
