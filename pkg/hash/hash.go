// Package hash computes the 32-bit identifier hashes stored in script images.
//
// Every function, namespace, field and detour name in an image is written as
// a hash rather than as text. The hash is a case-insensitive FNV-1a variant
// seeded with a per-target initial value and multiplied by a per-target key,
// followed by one extra multiplication.
package hash

import (
	"strconv"
	"strings"
	"unicode"
)

// Default parameters used by targets that do not override them.
const (
	DefaultIV  uint32 = 0x4B9ACE2F
	DefaultKey uint32 = 0x1000193
)

// identifierPrefixes name identifiers whose hash is spelled out in hex,
// e.g. "func_1a2b3c4d". Decompiled sources use these for unknown names.
var identifierPrefixes = []string{
	"function_",
	"func_",
	"namespace_",
	"var_",
	"hash_",
}

// Script hashes s with the given parameters. Letters are folded to lower
// case before mixing.
func Script(s string, iv, key uint32) uint32 {
	h := iv
	for _, c := range s {
		h = (uint32(unicode.ToLower(c)) ^ h) * key
	}
	return h * key
}

// Literal reports the hash spelled out by a prefixed identifier such as
// "var_00c0ffee". ok is false when s has no known prefix or the suffix is
// not a 32-bit hex number.
func Literal(s string) (value uint32, ok bool) {
	s = strings.ToLower(s)
	for _, prefix := range identifierPrefixes {
		if len(s) <= len(prefix) || !strings.HasPrefix(s, prefix) {
			continue
		}
		v, err := strconv.ParseUint(s[len(prefix):], 16, 32)
		if err != nil {
			return 0, false
		}
		return uint32(v), true
	}
	return 0, false
}

// Hasher hashes identifiers for one target.
type Hasher struct {
	IV  uint32
	Key uint32
}

// Default returns a Hasher using DefaultIV and DefaultKey.
func Default() Hasher {
	return Hasher{IV: DefaultIV, Key: DefaultKey}
}

// Identifier hashes an identifier. The empty string hashes to 0 and prefixed
// hex identifiers hash to their literal value.
func (h Hasher) Identifier(s string) uint32 {
	if s == "" {
		return 0
	}
	if v, ok := Literal(s); ok {
		return v
	}
	return Script(s, h.IV, h.Key)
}
