// Package bytecode models the instructions of a script function as nodes and
// lays them out into an image.
//
// The format is designed around a few constraints of the target VMs:
//   - Every instruction starts with a tag whose width depends on the target:
//     two bytes on little-endian builds, one on big-endian builds
//   - Operands are aligned to their natural boundary, so an instruction's
//     size depends on the address it is placed at
//   - The numeric tag of an operation differs between VM builds and is looked
//     up in an opcode.Table only when the node is encoded
//
// # Nodes
//
// Each node kind implements Instruction. A few nodes choose their own
// operation from their state: Number picks GetZero/GetByte/GetUnsignedShort/
// GetInteger/GetFloat from its value when it is built, Locals degenerates to
// CheckClearParams when it declares no variables, and Return becomes End when
// the previous instruction has no operand. The latter two are decided once,
// when the stream is laid out.
//
// # Arena and streams
//
// Nodes live in an Arena and are addressed by NodeID. A Stream is a doubly
// linked sequence of nodes belonging to one function. Symbol table entries
// refer back to nodes by NodeID; nodes refer to entries through a Symbol
// handle. Neither side owns the other.
//
// # Passes
//
// Linking a function runs three passes:
//
//   - Layout walks the stream once and assigns every node its address
//   - Encode writes every node into the image at its address; jump operands
//     hold the 0xFFFF placeholder
//   - PatchBranches runs after every stream in the arena has been encoded
//     and overwrites the placeholders with signed 16-bit displacements
//
// A branch displacement that does not fit in 16 bits is an error.
package bytecode
