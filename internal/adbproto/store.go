/* adbr-server - ADB protocol host daemon with USB transport and TCP client front-end
 *
 * Packet store: demultiplexes packets by (arg0, arg1) stream key
 */

package adbproto

import "sync"

// entry is one packet parked in the store, with its stream data
type entry struct {
	cmd  Command
	data []byte
}

// Store maps (arg0, arg1) to a FIFO queue of parked packets. A packet
// reader calls Put as packets arrive off the wire; stream consumers
// call Get to pull packets matching their TransactionInfo.
type Store struct {
	mu    sync.Mutex
	queue map[[2]uint32][]entry
}

// NewStore creates an empty packet store
func NewStore() *Store {
	return &Store{queue: make(map[[2]uint32][]entry)}
}

// Put appends a packet to the FIFO queue for (arg0, arg1)
func (s *Store) Put(arg0, arg1 uint32, cmd Command, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := [2]uint32{arg0, arg1}
	s.queue[key] = append(s.queue[key], entry{cmd, data})
}

// Get pops the first queued packet matching (arg0, arg1) — with
// wildcard zero matching, (0,0) matches any key, (x,0)/(0,y) matches
// on that half only — whose head command is in expectedCmds (an empty
// expectedCmds matches any command). Returns ok=false if nothing
// matches. Iteration order over multiple matching queues is
// unspecified.
func (s *Store) Get(arg0, arg1 uint32, expectedCmds []Command) (cmd Command, a0, a1 uint32, data []byte, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, q := range s.queue {
		if len(q) == 0 {
			continue
		}
		if !keyMatches(key, arg0, arg1) {
			continue
		}
		if !cmdExpected(q[0].cmd, expectedCmds) {
			continue
		}

		head := q[0]
		if len(q) == 1 {
			delete(s.queue, key)
		} else {
			s.queue[key] = q[1:]
		}

		return head.cmd, key[0], key[1], head.data, true
	}

	return 0, 0, 0, nil, false
}

// Clear removes the whole queue for (arg0, arg1), discarding any
// packets still parked for it. Called on CLSE.
func (s *Store) Clear(arg0, arg1 uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.queue, [2]uint32{arg0, arg1})
}

func keyMatches(key [2]uint32, arg0, arg1 uint32) bool {
	switch {
	case arg0 == 0 && arg1 == 0:
		return true
	case arg1 == 0:
		return key[0] == arg0
	case arg0 == 0:
		return key[1] == arg1
	default:
		return key[0] == arg0 && key[1] == arg1
	}
}

func cmdExpected(cmd Command, expected []Command) bool {
	if len(expected) == 0 {
		return true
	}
	for _, c := range expected {
		if c == cmd {
			return true
		}
	}
	return false
}
