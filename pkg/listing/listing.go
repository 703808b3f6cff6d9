// Package listing reads YAML descriptions of already-built instruction
// lists and turns them into linkable scripts.
//
// A listing names a script, its includes, its exports with their code, and
// its detours:
//
//	name: scripts/mod.gsc
//	target: pc_r7
//	exports:
//	  - name: main
//	    namespace: mod
//	    locals: [count]
//	    code:
//	      - number: 3
//	      - local: count
//	        mode: ref
//	      - op: SetVariableField
//	      - jump: done
//	        op: JumpOnFalse
//	      - call: iprintln
//	        params: 1
//	      - label: done
//	      - return: true
//	detours:
//	  - fixup: main
//	    namespace: sys
//	    function: iprintln
package listing

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/chazu/gsclink/pkg/bytecode"
	"github.com/chazu/gsclink/pkg/opcode"
	"github.com/chazu/gsclink/pkg/script"
)

// Ext is the conventional listing file extension.
const Ext = ".yaml"

var (
	ErrBadItem        = errors.New("malformed code item")
	ErrUnknownLabel   = errors.New("unknown label")
	ErrDuplicateLabel = errors.New("label defined twice")
	ErrBadFlag        = errors.New("unknown flag")
)

// Unit is one script listing.
type Unit struct {
	Name     string   `yaml:"name"`
	Target   string   `yaml:"target,omitempty"`
	Includes []string `yaml:"includes,omitempty"`
	Exports  []Export `yaml:"exports"`
	Detours  []Detour `yaml:"detours,omitempty"`
}

// Export is one exported function.
type Export struct {
	Name      string   `yaml:"name"`
	Namespace string   `yaml:"namespace,omitempty"`
	Params    uint8    `yaml:"params,omitempty"`
	Flags     []string `yaml:"flags,omitempty"`
	Locals    []string `yaml:"locals,omitempty"`
	Code      []Item   `yaml:"code"`
}

// Detour replaces Namespace::Function of Script, or a builtin when Script
// is empty, with the export named Fixup.
type Detour struct {
	Fixup     string `yaml:"fixup"`
	Namespace string `yaml:"namespace"`
	Function  string `yaml:"function"`
	Script    string `yaml:"script,omitempty"`
}

// Item is one code entry. Exactly one of the kind fields is set; Op alone
// is a plain operation, and Op next to jump or field picks the variant.
type Item struct {
	Op string `yaml:"op,omitempty"`

	Number  any     `yaml:"number,omitempty"`
	String  *string `yaml:"string,omitempty"`
	IString *string `yaml:"istring,omitempty"`
	Hash    string  `yaml:"hash,omitempty"`
	Local   string  `yaml:"local,omitempty"`
	Field   string  `yaml:"field,omitempty"`
	Global  string  `yaml:"global,omitempty"`
	Call    string  `yaml:"call,omitempty"`
	CallPtr bool    `yaml:"callptr,omitempty"`
	FuncPtr string  `yaml:"funcptr,omitempty"`
	Jump    string  `yaml:"jump,omitempty"`
	Label   string  `yaml:"label,omitempty"`
	Return  bool    `yaml:"return,omitempty"`
	Declare string  `yaml:"declare,omitempty"`
	Release string  `yaml:"release,omitempty"`

	// Modifiers.
	Mode      string   `yaml:"mode,omitempty"` // local: eval, ref, waittill
	Ref       bool     `yaml:"ref,omitempty"`  // field, global
	Namespace string   `yaml:"namespace,omitempty"`
	Params    uint8    `yaml:"params,omitempty"`
	Method    bool     `yaml:"method,omitempty"`
	Thread    bool     `yaml:"thread,omitempty"`
	Flags     []string `yaml:"flags,omitempty"`

	line int
}

// UnmarshalYAML records the item's line for error messages.
func (it *Item) UnmarshalYAML(value *yaml.Node) error {
	type plain Item
	if err := value.Decode((*plain)(it)); err != nil {
		return err
	}
	it.line = value.Line
	return nil
}

// Line returns the line the item was read from, or 0.
func (it *Item) Line() int { return it.line }

func (it *Item) kinds() []string {
	var k []string
	add := func(set bool, name string) {
		if set {
			k = append(k, name)
		}
	}
	add(it.Number != nil, "number")
	add(it.String != nil, "string")
	add(it.IString != nil, "istring")
	add(it.Hash != "", "hash")
	add(it.Local != "", "local")
	add(it.Field != "", "field")
	add(it.Global != "", "global")
	add(it.Call != "", "call")
	add(it.CallPtr, "callptr")
	add(it.FuncPtr != "", "funcptr")
	add(it.Jump != "", "jump")
	add(it.Label != "", "label")
	add(it.Return, "return")
	add(it.Declare != "", "declare")
	add(it.Release != "", "release")
	if len(k) == 0 && it.Op != "" {
		k = append(k, "op")
	}
	return k
}

// Parse decodes a listing.
func Parse(data []byte) (*Unit, error) {
	var u Unit
	if err := yaml.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}
	if u.Name == "" {
		return nil, fmt.Errorf("parse listing: missing name")
	}
	return &u, nil
}

// Load reads and decodes the listing at path.
func Load(path string) (*Unit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read listing: %w", err)
	}
	u, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return u, nil
}

// TargetKey parses the unit's "<platform>_r<revision>" target. ok is false
// when the unit does not name one.
func (u *Unit) TargetKey() (key opcode.Key, ok bool, err error) {
	if u.Target == "" {
		return opcode.Key{}, false, nil
	}
	i := strings.LastIndex(u.Target, "_r")
	if i <= 0 {
		return opcode.Key{}, false, fmt.Errorf("target %q: want <platform>_r<revision>", u.Target)
	}
	var rev int
	if _, err := fmt.Sscanf(u.Target[i+2:], "%d", &rev); err != nil {
		return opcode.Key{}, false, fmt.Errorf("target %q: %w", u.Target, err)
	}
	return opcode.Key{Platform: u.Target[:i], Revision: rev}, true, nil
}

// Build creates a script for tbl from the listing. The script is not
// linked.
func (u *Unit) Build(tbl *opcode.Table) (*script.Script, error) {
	s := script.New(u.Name, tbl)
	for _, inc := range u.Includes {
		s.AddInclude(inc)
	}
	for i := range u.Exports {
		if err := buildExport(s, &u.Exports[i], DefaultNamespace(u.Name)); err != nil {
			return nil, fmt.Errorf("%s: export %s: %w", u.Name, u.Exports[i].Name, err)
		}
	}
	for _, d := range u.Detours {
		err := s.AddDetour(script.Detour{
			FixupName:        s.Hash(d.Fixup),
			ReplaceNamespace: s.Hash(d.Namespace),
			ReplaceFunction:  s.Hash(d.Function),
			ReplaceScript:    d.Script,
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", u.Name, err)
		}
	}
	return s, nil
}

var exportFlags = map[string]script.ExportFlags{
	"autoexec": script.ExportAutoExec,
	"private":  script.ExportPrivate,
}

var importFlags = map[string]script.ImportFlags{
	"ref":      script.ImportRef,
	"function": script.ImportFunction,
	"method":   script.ImportMethod,
	"debug":    script.ImportDebug,
	"resolver": script.ImportNeedsResolver,
}

func parseFlags[F ~uint8](names []string, known map[string]F) (F, error) {
	var f F
	for _, n := range names {
		v, ok := known[strings.ToLower(n)]
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrBadFlag, n)
		}
		f |= v
	}
	return f, nil
}

type pendingJump struct {
	id    bytecode.NodeID
	label string
	line  int
}

// DefaultNamespace returns the namespace of functions in the script at
// path that do not declare one: the file name without extension.
func DefaultNamespace(path string) string {
	base := path[strings.LastIndexAny(path, `/\`)+1:]
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	return strings.ToLower(base)
}

func buildExport(s *script.Script, e *Export, ns string) error {
	flags, err := parseFlags(e.Flags, exportFlags)
	if err != nil {
		return err
	}
	if e.Namespace != "" {
		ns = e.Namespace
	}
	f, err := s.AddExport(s.Hash(e.Name), s.Hash(ns), e.Params, flags)
	if err != nil {
		return err
	}
	for _, name := range e.Locals {
		if _, err := f.DeclareLocal(s.Hash(name)); err != nil {
			return fmt.Errorf("local %s: %w", name, err)
		}
	}

	labels := make(map[string]bytecode.NodeID)
	var jumps []pendingJump
	for i := range e.Code {
		it := &e.Code[i]
		id, err := addItem(s, f, it)
		if err != nil {
			return fmt.Errorf("line %d: %w", it.line, err)
		}
		switch {
		case it.Label != "":
			if _, ok := labels[it.Label]; ok {
				return fmt.Errorf("line %d: %w: %s", it.line, ErrDuplicateLabel, it.Label)
			}
			labels[it.Label] = id
		case it.Jump != "":
			jumps = append(jumps, pendingJump{id, it.Jump, it.line})
		}
	}
	for _, j := range jumps {
		target, ok := labels[j.label]
		if !ok {
			return fmt.Errorf("line %d: %w: %s", j.line, ErrUnknownLabel, j.label)
		}
		if err := f.SetJumpTarget(j.id, target); err != nil {
			return fmt.Errorf("line %d: %w", j.line, err)
		}
	}
	return nil
}

func parseOp(name string, fallback opcode.Op) (opcode.Op, error) {
	if name == "" {
		return fallback, nil
	}
	return opcode.Parse(name)
}

var localModes = map[string]opcode.Op{
	"":         opcode.OpEvalLocalVariableCached,
	"eval":     opcode.OpEvalLocalVariableCached,
	"ref":      opcode.OpEvalLocalVariableRefCached,
	"waittill": opcode.OpSetWaittillVariableFieldCached,
}

// addItem appends it to f. Declarations return NoNode.
func addItem(s *script.Script, f *script.Function, it *Item) (bytecode.NodeID, error) {
	kinds := it.kinds()
	switch len(kinds) {
	case 0:
		return bytecode.NoNode, fmt.Errorf("%w: empty", ErrBadItem)
	case 1:
	default:
		return bytecode.NoNode, fmt.Errorf("%w: both %s", ErrBadItem, strings.Join(kinds, " and "))
	}

	switch kinds[0] {
	case "op":
		op, err := opcode.Parse(it.Op)
		if err != nil {
			return bytecode.NoNode, err
		}
		return f.AddOp(op)
	case "number":
		return f.AddNumber(it.Number)
	case "string":
		return f.AddString(*it.String)
	case "istring":
		return f.AddIString(*it.IString)
	case "hash":
		return f.AddHash(s.Hash(it.Hash))
	case "local":
		op, ok := localModes[it.Mode]
		if !ok {
			return bytecode.NoNode, fmt.Errorf("%w: local mode %q", ErrBadItem, it.Mode)
		}
		return f.AddLocal(op, s.Hash(it.Local))
	case "field":
		fallback := opcode.OpEvalFieldVariable
		if it.Ref {
			fallback = opcode.OpEvalFieldVariableRef
		}
		op, err := parseOp(it.Op, fallback)
		if err != nil {
			return bytecode.NoNode, err
		}
		return f.AddField(op, s.Hash(it.Field))
	case "global":
		return f.AddGlobal(s.Hash(it.Global), it.Ref)
	case "call":
		ctx := it.context()
		flags, err := parseFlags(it.Flags, importFlags)
		if err != nil {
			return bytecode.NoNode, err
		}
		return f.AddCall(ctx, s.Hash(it.Call), s.Hash(it.Namespace), it.Params, flags|script.CallFlags(ctx))
	case "callptr":
		return f.AddCallPointer(it.context(), it.Params)
	case "funcptr":
		flags, err := parseFlags(it.Flags, importFlags)
		if err != nil {
			return bytecode.NoNode, err
		}
		return f.AddFunctionPointer(s.Hash(it.FuncPtr), s.Hash(it.Namespace), it.Params, flags|script.ImportFunction)
	case "jump":
		op, err := parseOp(it.Op, opcode.OpJump)
		if err != nil {
			return bytecode.NoNode, err
		}
		return f.AddJump(op)
	case "label":
		return f.AddMarker(it.Label)
	case "return":
		return f.AddReturn()
	case "declare":
		_, err := f.DeclareLocal(s.Hash(it.Declare))
		return bytecode.NoNode, err
	case "release":
		return bytecode.NoNode, f.ReleaseLocal(s.Hash(it.Release))
	}
	return bytecode.NoNode, fmt.Errorf("%w: %s", ErrBadItem, kinds[0])
}

func (it *Item) context() bytecode.CallContext {
	var ctx bytecode.CallContext
	if it.Method {
		ctx |= bytecode.CallMethod
	}
	if it.Thread {
		ctx |= bytecode.CallThreaded
	}
	return ctx
}
