// Package kv provides the key-value backends the records are persisted to.
package kv

import "errors"

// Entry is one key and its serialized value.
type Entry struct {
	Key   string
	Value []byte
}

// ErrEmptyKey rejects writes without a key.
var ErrEmptyKey = errors.New("kv: empty key")

func checkEntries(entries []Entry) error {
	for _, e := range entries {
		if e.Key == "" {
			return ErrEmptyKey
		}
	}
	return nil
}
