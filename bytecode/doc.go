// Package bytecode defines the instruction set of the host runtime and the
// tools used to read, build, and rewrite host routines.
//
// Host routines are stored as compact byte sequences (see Method). Editing
// them in place is impractical because every insertion shifts the relative
// offsets of the jumps around it, so rewriting happens on a decoded form:
//
//   - Decode turns a Method into a Body, a list of Instruction values whose
//     branch operands point at other instructions instead of byte offsets.
//   - The Body can be freely spliced. Labels are implicit: an instruction is
//     a label when some branch targets it.
//   - Encode lays the list out again, recomputing every offset.
//   - VerifyStack walks every control path and checks that the evaluation
//     stack never underflows, that all paths agree on depth where they
//     merge, and that temp and literal operands are in range.
//
// The Builder and Reader types are the low-level encoder and decoder used by
// the above and by hosts that assemble their stock routines directly.
package bytecode
