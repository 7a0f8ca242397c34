// Package kv stores the application's small records (profiles, transcripts)
// under hierarchical keys.
//
// A Key such as {"transcript", "<session>", "000001"} is encoded as
// "transcript:<session>:000001". List scans one level of the hierarchy in
// lexicographic order, so callers that need ordering zero-pad numeric
// segments.
package kv

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
)

var (
	// ErrNotFound is returned by Get when the key does not exist.
	ErrNotFound = errors.New("kv: not found")

	// ErrInvalidKey is returned for empty keys and for segments that are
	// empty or contain the separator.
	ErrInvalidKey = errors.New("kv: invalid key")
)

// Separator joins key segments.
const Separator = ':'

// Key is a hierarchical path.
type Key []string

func (k Key) String() string {
	return strings.Join(k, string(Separator))
}

// Append returns a new key with segs added.
func (k Key) Append(segs ...string) Key {
	out := make(Key, 0, len(k)+len(segs))
	return append(append(out, k...), segs...)
}

// Validate reports ErrInvalidKey for malformed keys.
func (k Key) Validate() error {
	if len(k) == 0 {
		return fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	for i, seg := range k {
		if seg == "" {
			return fmt.Errorf("%w: segment %d of %q is empty", ErrInvalidKey, i, k.String())
		}
		if strings.IndexByte(seg, Separator) >= 0 {
			return fmt.Errorf("%w: segment %q contains %q", ErrInvalidKey, seg, Separator)
		}
	}
	return nil
}

// Entry is one stored record.
type Entry struct {
	Key   Key
	Value []byte
}

// Store is a key-value store. Implementations are safe for concurrent use.
type Store interface {
	// Get returns ErrNotFound when key is absent.
	Get(ctx context.Context, key Key) ([]byte, error)

	Set(ctx context.Context, key Key, value []byte) error

	// Delete succeeds when key is absent.
	Delete(ctx context.Context, key Key) error

	// List yields the entries strictly below prefix in key order. An empty
	// prefix lists everything.
	List(ctx context.Context, prefix Key) iter.Seq2[Entry, error]

	// BatchSet writes all entries or none.
	BatchSet(ctx context.Context, entries []Entry) error

	Close() error
}

func encodeKey(k Key) ([]byte, error) {
	if err := k.Validate(); err != nil {
		return nil, err
	}
	return []byte(k.String()), nil
}

// scanPrefix returns the encoded prefix including the trailing separator, so
// {"a","b"} matches "a:b:c" but not "a:bc".
func scanPrefix(prefix Key) ([]byte, error) {
	if len(prefix) == 0 {
		return nil, nil
	}
	p, err := encodeKey(prefix)
	if err != nil {
		return nil, err
	}
	return append(p, Separator), nil
}

func decodeKey(b []byte) Key {
	return strings.Split(string(b), string(Separator))
}
