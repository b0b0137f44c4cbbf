package provision

import "fmt"

// Chunk is one fragment of a command payload. Indices are contiguous from 0;
// exactly one chunk has Last set and it is the highest-indexed one.
type Chunk struct {
	Index   int
	Last    bool
	Payload []byte
}

// Chunks splits payload into MTU-bounded fragments. An empty payload still
// yields exactly one empty chunk (index 0, last) - the handshake protocol
// expects at least one write, so the degenerate case is not special-cased
// away.
func Chunks(payload []byte, mtu int) ([]Chunk, error) {
	if mtu <= 0 {
		return nil, fmt.Errorf("invalid mtu %d: must be positive", mtu)
	}

	count := (len(payload) + mtu - 1) / mtu
	if count == 0 {
		count = 1
	}

	chunks := make([]Chunk, 0, count)
	for i := 0; i < count; i++ {
		last := i == count-1
		end := (i + 1) * mtu
		if last {
			end = len(payload)
		}
		chunks = append(chunks, Chunk{
			Index:   i,
			Last:    last,
			Payload: payload[i*mtu : end],
		})
	}
	return chunks, nil
}

// Encode produces the on-wire frame for a single write: chunk-index byte,
// last-flag byte, then the payload.
func (c Chunk) Encode() []byte {
	frame := make([]byte, 0, 2+len(c.Payload))
	lastFlag := byte(0)
	if c.Last {
		lastFlag = 1
	}
	frame = append(frame, byte(c.Index), lastFlag)
	return append(frame, c.Payload...)
}
