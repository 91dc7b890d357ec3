package audioqueue

// ByteStream is a byte buffer with a read cursor.
type ByteStream struct {
	data []byte
	pos  int
}

// NewByteStream wraps data without copying it.
func NewByteStream(data []byte) ByteStream {
	return ByteStream{data: data}
}

// Fetch copies up to len(dst) unread bytes into dst, advances the cursor and
// returns how many bytes were copied.
func (b *ByteStream) Fetch(dst []byte) int {
	n := copy(dst, b.data[b.pos:])
	b.pos += n
	return n
}

// Len returns the total buffer size.
func (b *ByteStream) Len() int {
	return len(b.data)
}

// Remaining returns how many bytes are left to read.
func (b *ByteStream) Remaining() int {
	return len(b.data) - b.pos
}

// Reset rewinds the cursor to the start.
func (b *ByteStream) Reset() {
	b.pos = 0
}
