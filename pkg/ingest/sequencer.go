package ingest

// fifo is a slice-backed queue. Popped slots are cleared so released
// messages can be collected.
type fifo[T any] struct {
	items []T
	head  int
}

func (q *fifo[T]) push(v T) {
	if q.head > 0 && q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	}
	q.items = append(q.items, v)
}

func (q *fifo[T]) pop() (T, bool) {
	var zero T
	if q.head == len(q.items) {
		return zero, false
	}
	v := q.items[q.head]
	q.items[q.head] = zero
	q.head++
	return v, true
}

func (q *fifo[T]) len() int { return len(q.items) - q.head }

func (q *fifo[T]) clear() {
	clear(q.items)
	q.items = q.items[:0]
	q.head = 0
}

// sequencer orders the requests of one connection.
//
// activeRead receives body bytes; activeRespond is the request the caller
// answers next. waitingReads holds requests whose header block arrived while
// another body was still being received, waitingResponds holds complete
// requests queued behind activeRespond. Both queues keep header-acceptance
// order, so requests leave the sequencer in the order they arrived.
type sequencer struct {
	activeRead      *Message
	activeRespond   *Message
	waitingReads    fifo[*Message]
	waitingResponds fifo[*Message]
}

// accept installs a request whose header block was just accepted.
func (s *sequencer) accept(m *Message) {
	if s.activeRead == nil {
		s.activeRead = m
		return
	}
	s.waitingReads.push(m)
}

// complete marks activeRead Complete, queues it for a response and moves
// the next waiting request into activeRead. It returns the completed
// request, or nil if no request was receiving a body.
func (s *sequencer) complete() *Message {
	m := s.activeRead
	if m == nil {
		return nil
	}
	m.state = Complete

	if s.activeRespond == nil {
		s.activeRespond = m
	} else {
		s.waitingResponds.push(m)
	}

	s.activeRead, _ = s.waitingReads.pop()
	return m
}

// release drops activeRespond and promotes the next complete request.
func (s *sequencer) release() *Message {
	m := s.activeRespond
	if m == nil {
		return nil
	}
	s.activeRespond, _ = s.waitingResponds.pop()
	return m
}

// current returns the request the caller should work on next, preferring
// one that is ready for a response.
func (s *sequencer) current() *Message {
	if s.activeRespond != nil {
		return s.activeRespond
	}
	return s.activeRead
}

// depth is the number of requests held.
func (s *sequencer) depth() int {
	n := s.waitingReads.len() + s.waitingResponds.len()
	if s.activeRead != nil {
		n++
	}
	if s.activeRespond != nil {
		n++
	}
	return n
}

// discardIncomplete drops every request still receiving its body.
// Complete requests stay deliverable.
func (s *sequencer) discardIncomplete() {
	if s.activeRead != nil {
		s.activeRead.discard()
		s.activeRead = nil
	}
	for {
		m, ok := s.waitingReads.pop()
		if !ok {
			break
		}
		m.discard()
	}
	s.waitingReads.clear()
}

// reset drops every request.
func (s *sequencer) reset() {
	s.discardIncomplete()
	for {
		m, ok := s.waitingResponds.pop()
		if !ok {
			break
		}
		m.discard()
	}
	s.waitingResponds.clear()
	if s.activeRespond != nil {
		s.activeRespond.discard()
		s.activeRespond = nil
	}
}
