package patch

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/prodzpod/Hacknet-Pathfinder/bytecode"
	"github.com/prodzpod/Hacknet-Pathfinder/host"
)

var ErrJournalMismatch = errors.New("routine does not match journal")

// cborEncMode uses canonical mode so journals and routine hashes are
// byte-for-byte reproducible.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("patch: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Entry records one applied site.
type Entry struct {
	Seq     uint64   `cbor:"1,keyasint"`
	Module  string   `cbor:"2,keyasint"`
	Site    string   `cbor:"3,keyasint"`
	Routine string   `cbor:"4,keyasint"`
	Before  [32]byte `cbor:"5,keyasint"` // routine hash before the commit
	After   [32]byte `cbor:"6,keyasint"` // routine hash after the commit
}

// Journal is the ordered record of every site the patcher committed.
type Journal struct {
	Entries []Entry `cbor:"1,keyasint"`
}

func (j *Journal) append(e Entry) {
	e.Seq = uint64(len(j.Entries) + 1)
	j.Entries = append(j.Entries, e)
}

// Latest returns the last entry touching routine.
func (j *Journal) Latest(routine string) (Entry, bool) {
	for i := len(j.Entries) - 1; i >= 0; i-- {
		if j.Entries[i].Routine == routine {
			return j.Entries[i], true
		}
	}
	return Entry{}, false
}

// Verify checks that every journaled routine still has the body the
// journal says it was left with.
func (j *Journal) Verify(rt host.Runtime) error {
	seen := make(map[string]bool)
	for i := len(j.Entries) - 1; i >= 0; i-- {
		e := j.Entries[i]
		if seen[e.Routine] {
			continue
		}
		seen[e.Routine] = true

		m, ok := rt.Routine(e.Routine)
		if !ok {
			return fmt.Errorf("%s: %w", e.Routine, host.ErrNoRoutine)
		}
		h, err := HashMethod(m)
		if err != nil {
			return err
		}
		if h != e.After {
			return fmt.Errorf("%s: %w: have %x, journal %x", e.Routine, ErrJournalMismatch, h[:8], e.After[:8])
		}
	}
	return nil
}

// MarshalJournal serializes a Journal to CBOR bytes.
func MarshalJournal(j *Journal) ([]byte, error) {
	return cborEncMode.Marshal(j)
}

// UnmarshalJournal deserializes a Journal from CBOR bytes.
func UnmarshalJournal(data []byte) (*Journal, error) {
	var j Journal
	if err := cbor.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("patch: unmarshal journal: %w", err)
	}
	return &j, nil
}

// methodImage is the hashed form of a routine.
type methodImage struct {
	Name     string `cbor:"1,keyasint"`
	Arity    int    `cbor:"2,keyasint"`
	NumTemps int    `cbor:"3,keyasint"`
	Literals []any  `cbor:"4,keyasint"`
	Code     []byte `cbor:"5,keyasint"`
}

// HashMethod computes the SHA-256 content hash of a routine over its
// canonical CBOR encoding.
func HashMethod(m *bytecode.Method) ([32]byte, error) {
	data, err := cborEncMode.Marshal(methodImage{
		Name:     m.Name,
		Arity:    m.Arity,
		NumTemps: m.NumTemps,
		Literals: m.Literals,
		Code:     m.Code,
	})
	if err != nil {
		return [32]byte{}, fmt.Errorf("patch: hash %s: %w", m.Name, err)
	}
	return sha256.Sum256(data), nil
}
