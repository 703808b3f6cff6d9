package bytecode

import (
	"fmt"

	"github.com/chazu/gsclink/pkg/opcode"
)

// NodeID addresses a node in an Arena. The zero value is NoNode.
type NodeID int32

// NoNode is the empty NodeID.
const NoNode NodeID = 0

type node struct {
	inst       Instruction
	stream     *Stream
	prev, next NodeID
	addr, size uint32
	placed     bool
}

// Arena owns the nodes of one compilation unit. Streams, jumps and symbol
// tables refer to nodes by NodeID.
type Arena struct {
	nodes    []node
	branches []NodeID
}

// NewArena returns an empty arena.
func NewArena() *Arena {
	return &Arena{nodes: make([]node, 1, 64)}
}

func (a *Arena) get(id NodeID) (*node, error) {
	if id <= NoNode || int(id) >= len(a.nodes) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownNode, id)
	}
	return &a.nodes[id], nil
}

func (a *Arena) add(inst Instruction, s *Stream) NodeID {
	id := NodeID(len(a.nodes))
	a.nodes = append(a.nodes, node{inst: inst, stream: s})
	if _, ok := inst.(*Jump); ok {
		a.branches = append(a.branches, id)
	}
	return id
}

// Len returns the number of nodes ever created, linked or not.
func (a *Arena) Len() int { return len(a.nodes) - 1 }

// Instruction returns the node's instruction, or nil for an unknown id.
func (a *Arena) Instruction(id NodeID) Instruction {
	n, err := a.get(id)
	if err != nil {
		return nil
	}
	return n.inst
}

// Linked reports whether the node currently belongs to a stream.
func (a *Arena) Linked(id NodeID) bool {
	n, err := a.get(id)
	return err == nil && n.stream != nil
}

// Placement returns the address and size assigned during layout.
func (a *Arena) Placement(id NodeID) (addr, size uint32, ok bool) {
	n, err := a.get(id)
	if err != nil || !n.placed {
		return 0, 0, false
	}
	return n.addr, n.size, true
}

// PayloadAddr returns the absolute address of a placed node's operand.
func (a *Arena) PayloadAddr(id NodeID) (uint32, error) {
	n, err := a.get(id)
	if err != nil {
		return 0, err
	}
	if !n.placed {
		return 0, fmt.Errorf("%w: node %d", ErrNotPlaced, id)
	}
	return n.inst.PayloadOffset(n.addr), nil
}

// Next returns the node following id in its stream.
func (a *Arena) Next(id NodeID) NodeID {
	if n, err := a.get(id); err == nil {
		return n.next
	}
	return NoNode
}

// Prev returns the node preceding id in its stream.
func (a *Arena) Prev(id NodeID) NodeID {
	if n, err := a.get(id); err == nil {
		return n.prev
	}
	return NoNode
}

// SetBranchTarget binds jump src to continue after node dst.
func (a *Arena) SetBranchTarget(src, dst NodeID) error {
	n, err := a.get(src)
	if err != nil {
		return err
	}
	j, ok := n.inst.(*Jump)
	if !ok {
		return fmt.Errorf("%w: node %d is %s", ErrNotJump, src, n.inst.Op())
	}
	if _, err := a.get(dst); err != nil {
		return err
	}
	if err := j.SetTarget(dst); err != nil {
		return fmt.Errorf("node %d: %w", src, err)
	}
	return nil
}

// PatchBranches resolves every linked jump in the arena. It must run after
// all streams that contain jumps or their targets have been encoded into
// image.
func (a *Arena) PatchBranches(image []byte) error {
	for _, id := range a.branches {
		src := &a.nodes[id]
		if src.stream == nil {
			continue
		}
		j := src.inst.(*Jump)
		if !src.placed {
			return fmt.Errorf("jump %d: %w", id, ErrNotPlaced)
		}
		if j.Target() == NoNode {
			return fmt.Errorf("jump %d (%s at 0x%X): %w", id, j.Op(), src.addr, ErrJumpTargetUnset)
		}
		dst, err := a.get(j.Target())
		if err != nil {
			return fmt.Errorf("jump %d: %w", id, err)
		}
		if dst.stream == nil {
			return fmt.Errorf("jump %d: target %d: %w", id, j.Target(), ErrNodeNotInStream)
		}
		if !dst.placed {
			return fmt.Errorf("jump %d: target %d: %w", id, j.Target(), ErrNotPlaced)
		}
		disp, err := BranchDisplacement(src.addr, src.size, dst.addr, dst.size)
		if err != nil {
			return fmt.Errorf("jump %d at 0x%X: %w", id, src.addr, err)
		}
		j.patch(image[src.addr:src.addr+src.size], src.addr, disp)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Streams
// ---------------------------------------------------------------------------

// Stream is the ordered instruction list of one function.
type Stream struct {
	arena      *Arena
	head, tail NodeID
	count      int
	laidOut    bool
}

// NewStream returns an empty stream backed by the arena.
func (a *Arena) NewStream() *Stream {
	return &Stream{arena: a}
}

// Arena returns the arena holding the stream's nodes.
func (s *Stream) Arena() *Arena { return s.arena }

// Head returns the first node.
func (s *Stream) Head() NodeID { return s.head }

// Tail returns the last node.
func (s *Stream) Tail() NodeID { return s.tail }

// Len returns the number of linked nodes.
func (s *Stream) Len() int { return s.count }

// EndOfChain follows next links from id and returns the last node reached.
func (s *Stream) EndOfChain(id NodeID) NodeID {
	for {
		next := s.arena.Next(id)
		if next == NoNode {
			return id
		}
		id = next
	}
}

// Append links inst at the end of the stream.
func (s *Stream) Append(inst Instruction) (NodeID, error) {
	if s.tail == NoNode {
		if err := s.mutable(); err != nil {
			return NoNode, err
		}
		id := s.arena.add(inst, s)
		s.head, s.tail = id, id
		s.count++
		return id, nil
	}
	return s.InsertAfter(s.tail, inst)
}

// InsertAfter links inst directly after node after.
func (s *Stream) InsertAfter(after NodeID, inst Instruction) (NodeID, error) {
	if err := s.mutable(); err != nil {
		return NoNode, err
	}
	prev, err := s.arena.get(after)
	if err != nil {
		return NoNode, err
	}
	if prev.stream != s {
		return NoNode, fmt.Errorf("%w: node %d", ErrNodeNotInStream, after)
	}
	id := s.arena.add(inst, s)
	n := &s.arena.nodes[id]
	prev = &s.arena.nodes[after]
	n.prev, n.next = after, prev.next
	if prev.next != NoNode {
		s.arena.nodes[prev.next].prev = id
	} else {
		s.tail = id
	}
	prev.next = id
	s.count++
	return id, nil
}

// Unlink removes a node from the stream. The node stays in the arena but is
// ignored by every later pass.
func (s *Stream) Unlink(id NodeID) error {
	if err := s.mutable(); err != nil {
		return err
	}
	n, err := s.arena.get(id)
	if err != nil {
		return err
	}
	if n.stream != s {
		return fmt.Errorf("%w: node %d", ErrNodeNotInStream, id)
	}
	if n.prev != NoNode {
		s.arena.nodes[n.prev].next = n.next
	} else {
		s.head = n.next
	}
	if n.next != NoNode {
		s.arena.nodes[n.next].prev = n.prev
	} else {
		s.tail = n.prev
	}
	n.prev, n.next, n.stream = NoNode, NoNode, nil
	s.count--
	return nil
}

func (s *Stream) mutable() error {
	if s.laidOut {
		return fmt.Errorf("%w: stream was laid out", ErrAlreadyPlaced)
	}
	return nil
}

// Each calls fn for every linked node in order.
func (s *Stream) Each(fn func(NodeID, Instruction) error) error {
	for id := s.head; id != NoNode; id = s.arena.nodes[id].next {
		if err := fn(id, s.arena.nodes[id].inst); err != nil {
			return err
		}
	}
	return nil
}

// Nodes returns the linked node ids in order.
func (s *Stream) Nodes() []NodeID {
	out := make([]NodeID, 0, s.count)
	for id := s.head; id != NoNode; id = s.arena.nodes[id].next {
		out = append(out, id)
	}
	return out
}

// Layout assigns consecutive addresses starting at base and returns the
// address following the last node. Finalizers run here, in order, so every
// size is known before it is used. A stream is laid out at most once.
func (s *Stream) Layout(base uint32) (uint32, error) {
	if s.laidOut {
		return 0, fmt.Errorf("%w: stream was laid out", ErrAlreadyPlaced)
	}
	s.laidOut = true
	var prev Instruction
	for id := s.head; id != NoNode; id = s.arena.nodes[id].next {
		n := &s.arena.nodes[id]
		if n.placed {
			return 0, fmt.Errorf("%w: node %d", ErrAlreadyPlaced, id)
		}
		if f, ok := n.inst.(Finalizer); ok {
			if err := f.Finalize(prev); err != nil {
				return 0, fmt.Errorf("node %d (%s): %w", id, n.inst.Op(), err)
			}
		}
		n.addr = base
		n.size = n.inst.Size(base)
		n.placed = true
		base += n.size
		prev = n.inst
	}
	return base, nil
}

// Encode writes every node into image at its assigned address, using tbl
// for operation values. Jump operands are left as placeholders.
func (s *Stream) Encode(image []byte, tbl *opcode.Table) error {
	return s.Each(func(id NodeID, inst Instruction) error {
		n := &s.arena.nodes[id]
		if !n.placed {
			return fmt.Errorf("%w: node %d", ErrNotPlaced, id)
		}
		end := n.addr + n.size
		if end > uint32(len(image)) {
			return fmt.Errorf("%w: node %d ends at 0x%X, image is 0x%X", ErrShortBuffer, id, end, len(image))
		}
		if err := inst.Encode(image[n.addr:end], n.addr, tbl.Value(inst.Op())); err != nil {
			return fmt.Errorf("node %d (%s at 0x%X): %w", id, inst.Op(), n.addr, err)
		}
		return nil
	})
}
