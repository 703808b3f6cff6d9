// Package script assembles a compilation unit into a loadable GSC image.
//
// A Script owns the symbol tables of one unit (exports, imports, strings,
// includes and globals), the arena holding every instruction node, and the
// detours registered against its exports. Functions are built through the
// Function returned by AddExport; each starts with its local variable
// declaration.
//
// Link lays the unit out as a chain of sections:
//
//	header | exports | imports | string fixups | includes | globals |
//	name | string literals | bytecode
//
// Each section is placed directly after the previous one. Once every size is
// known the sections are written, branches are patched and, when detours are
// registered, the GSIC trailer is appended.
package script
