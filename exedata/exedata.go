// Package exedata maps extension type names to the data strings stored in
// the host's program files.
//
// The host identifies a program file by comparing its contents against the
// data blobs of its built-in programs, which are long runs of binary digits.
// Encode produces a string of the same shape for an extension type so that
// the host's loaders and copy commands treat it as ordinary program data.
// There is no decoder: the registry keeps the reverse table.
package exedata

import (
	"strconv"
	"strings"
)

// Tag namespaces every encoded identifier.
const Tag = "PathfinderExe:"

// Encode returns the program data for the fully qualified type name. Each
// byte of Tag+name is written in base 2 without padding and the results are
// concatenated.
func Encode(qualifiedName string) string {
	src := Tag + qualifiedName
	var sb strings.Builder
	sb.Grow(len(src) * 7)
	for i := 0; i < len(src); i++ {
		sb.WriteString(strconv.FormatUint(uint64(src[i]), 2))
	}
	return sb.String()
}

// Plausible reports whether s uses only the encoding alphabet. It does not
// mean s is registered.
func Plausible(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] != '0' && s[i] != '1' {
			return false
		}
	}
	return true
}
