// Package patch locates instruction sequences inside host routines and
// splices new behavior into them.
//
// A Site names a host routine and an Apply function. Apply receives a
// Cursor over the routine's decoded body, seeks to an anchor made of
// Predicates, and edits at the cursor, usually inserting a call to a Go
// trampoline with the load glue it needs. The Patcher applies the sites of
// one module together: every touched routine is rewritten in memory and
// checked by the stack verifier, and only if all of them succeed are the
// trampolines bound and the routines installed. A missing anchor is
// reported as ErrPatternNotFound and leaves the host untouched.
//
// Committed sites are recorded in a Journal with content hashes of each
// routine before and after the edit.
package patch
