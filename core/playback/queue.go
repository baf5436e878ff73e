package playback

// queue is the FIFO of PCM chunks waiting for the consumer. It is not
// synchronized on its own; the sink guards it with its mutex.
type queue struct {
	chunks [][]byte

	// generation changes on every clear so the consumer can detect that a
	// chunk it already dequeued was flushed by a barge-in.
	generation uint64

	updateSignal chan struct{}
}

func newQueue() *queue {
	return &queue{updateSignal: make(chan struct{}, 1)}
}

func (q *queue) push(chunk []byte) {
	q.chunks = append(q.chunks, chunk)
	q.signalUpdate()
}

func (q *queue) pop() ([]byte, bool) {
	if len(q.chunks) == 0 {
		return nil, false
	}

	chunk := q.chunks[0]
	q.chunks[0] = nil
	q.chunks = q.chunks[1:]
	return chunk, true
}

// clear drops all queued chunks and returns how many were dropped.
func (q *queue) clear() int {
	dropped := len(q.chunks)
	q.chunks = nil
	q.generation++
	q.signalUpdate()
	return dropped
}

func (q *queue) len() int { return len(q.chunks) }

func (q *queue) signalUpdate() {
	select {
	case q.updateSignal <- struct{}{}:
	default:
	}
}
