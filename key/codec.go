// Package key derives canonical fingerprints from call signatures.
//
// A fingerprint is a hex-encoded SHA-256 over a canonical byte encoding of
// the positional and named values of a call. Equal values (by deep equality)
// always encode to the same fingerprint, regardless of the insertion order
// of named values, and the encoding is stable across processes so that
// fingerprints can be used as keys in a persistent store.
//
// A value is encodable if it is one of the supported scalar types, a
// supported sequence or string-keyed map of encodable values, or a type
// that supplies its own canonical form via CacheKeyer. Everything else is
// rejected with *UnhashableInputError rather than hashed by reflection:
// identity-based representations would make every re-run a miss.
package key

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"math"
	"sort"
	"time"
)

// Fingerprint is a canonical, process-stable encoding of a call signature.
// It is safe to use as a map key and as a file-store key.
type Fingerprint string

// CacheKeyer lets compound values supply their own canonical form.
// The returned string must be stable across runs and must differ for
// values that are not deeply equal.
type CacheKeyer interface {
	CacheKey() string
}

// UnhashableInputError reports a value that has no deterministic canonical
// encoding. Path locates the offending value inside the signature, e.g.
// "positional[2]" or "named[limit][0]".
type UnhashableInputError struct {
	Value any
	Path  string
}

func (e *UnhashableInputError) Error() string {
	return fmt.Sprintf("key: unhashable input of type %T at %s; implement key.CacheKeyer or use a supported type", e.Value, e.Path)
}

// Encode fingerprints a call signature. Positional values are combined in
// call order; named values are combined sorted by name, so the caller's map
// iteration order never affects the result. A nil named map and an empty
// one encode identically.
func Encode(positional []any, named map[string]any) (Fingerprint, error) {
	h := sha256.New()

	writeTag(h, 'P', len(positional))
	for i, v := range positional {
		if err := writeValue(h, v, fmt.Sprintf("positional[%d]", i)); err != nil {
			return "", err
		}
	}

	names := make([]string, 0, len(named))
	for n := range named {
		names = append(names, n)
	}
	sort.Strings(names)

	writeTag(h, 'N', len(named))
	for _, n := range names {
		writeString(h, n)
		if err := writeValue(h, named[n], "named["+n+"]"); err != nil {
			return "", err
		}
	}

	return Fingerprint(hex.EncodeToString(h.Sum(nil))), nil
}

// writeTag frames a composite with a kind byte and an element count so that
// adjacent values cannot collide by concatenation.
func writeTag(h hash.Hash, kind byte, n int) {
	var buf [9]byte
	buf[0] = kind
	binary.LittleEndian.PutUint64(buf[1:], uint64(n))
	h.Write(buf[:])
}

func writeString(h hash.Hash, s string) {
	writeTag(h, 's', len(s))
	h.Write([]byte(s))
}

func writeUint64(h hash.Hash, kind byte, u uint64) {
	var buf [9]byte
	buf[0] = kind
	binary.LittleEndian.PutUint64(buf[1:], u)
	h.Write(buf[:])
}

// writeValue encodes a single value with a type tag. The type switch is
// deliberately explicit: supporting a type here is a promise that its
// encoding is deterministic across runs.
func writeValue(h hash.Hash, v any, path string) error {
	switch x := v.(type) {
	case nil:
		writeTag(h, 'z', 0)
	case bool:
		if x {
			writeUint64(h, 'b', 1)
		} else {
			writeUint64(h, 'b', 0)
		}
	case int:
		writeUint64(h, 'i', uint64(x))
	case int8:
		writeUint64(h, 'i', uint64(x))
	case int16:
		writeUint64(h, 'i', uint64(x))
	case int32:
		writeUint64(h, 'i', uint64(x))
	case int64:
		writeUint64(h, 'i', uint64(x))
	case uint:
		writeUint64(h, 'u', uint64(x))
	case uint8:
		writeUint64(h, 'u', uint64(x))
	case uint16:
		writeUint64(h, 'u', uint64(x))
	case uint32:
		writeUint64(h, 'u', uint64(x))
	case uint64:
		writeUint64(h, 'u', x)
	case uintptr:
		writeUint64(h, 'u', uint64(x))
	case float32:
		writeUint64(h, 'f', math.Float64bits(float64(x)))
	case float64:
		writeUint64(h, 'f', math.Float64bits(x))
	case complex64:
		writeUint64(h, 'f', math.Float64bits(float64(real(x))))
		writeUint64(h, 'f', math.Float64bits(float64(imag(x))))
	case complex128:
		writeUint64(h, 'f', math.Float64bits(real(x)))
		writeUint64(h, 'f', math.Float64bits(imag(x)))
	case string:
		writeString(h, x)
	case []byte:
		writeTag(h, 'y', len(x))
		h.Write(x)
	case time.Time:
		// UTC nanoseconds; equal instants in different zones encode equally.
		writeUint64(h, 't', uint64(x.UnixNano()))
	case Fingerprint:
		// Own tag: a fingerprint used as a value must not collide with the
		// plain string carrying the same bytes.
		writeTag(h, 'F', len(x))
		h.Write([]byte(x))
	case CacheKeyer:
		writeTag(h, 'k', 0)
		writeString(h, x.CacheKey())
	case []any:
		writeTag(h, 'l', len(x))
		for i, e := range x {
			if err := writeValue(h, e, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	case []string:
		writeTag(h, 'l', len(x))
		for _, e := range x {
			writeString(h, e)
		}
	case []int:
		writeTag(h, 'l', len(x))
		for _, e := range x {
			writeUint64(h, 'i', uint64(e))
		}
	case []int64:
		writeTag(h, 'l', len(x))
		for _, e := range x {
			writeUint64(h, 'i', uint64(e))
		}
	case []float64:
		writeTag(h, 'l', len(x))
		for _, e := range x {
			writeUint64(h, 'f', math.Float64bits(e))
		}
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		writeTag(h, 'm', len(x))
		for _, k := range keys {
			writeString(h, k)
			if err := writeValue(h, x[k], path+"["+k+"]"); err != nil {
				return err
			}
		}
	case map[string]string:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		writeTag(h, 'm', len(x))
		for _, k := range keys {
			writeString(h, k)
			writeString(h, x[k])
		}
	default:
		return &UnhashableInputError{Value: v, Path: path}
	}
	return nil
}
