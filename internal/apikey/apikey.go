// Package apikey defines the symbient API credential format and the
// generate/hash/compare primitives around it.
//
// A credential is the literal tag "campfire_" followed by 32 random
// alphanumeric characters, 41 characters total. Only a bcrypt hash is stored
// server-side, plus the first PrefixLen characters of the plaintext as a
// public index so authentication can narrow the candidate rows to at most
// one before doing the expensive hash comparison.
package apikey

import (
	"crypto/rand"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

const (
	// Tag is the fixed public prefix every credential starts with.
	Tag = "campfire_"

	// SuffixLen random characters follow the tag.
	SuffixLen = 32

	// TotalLen is the exact length of a well-formed credential.
	TotalLen = len(Tag) + SuffixLen

	// PrefixLen characters of the plaintext are stored for indexed lookup.
	// The tag plus eight random characters is long enough that a prefix
	// collision is vanishingly rare and harmless when it happens (the hash
	// comparison still decides).
	PrefixLen = len(Tag) + 8
)

const alphanumeric = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// ErrMalformed is returned for credentials that fail the cheap shape check.
var ErrMalformed = errors.New("malformed api key")

// New generates a fresh plaintext credential.
func New() (string, error) {
	buf := make([]byte, SuffixLen)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, 0, TotalLen)
	out = append(out, Tag...)
	for _, b := range buf {
		out = append(out, alphanumeric[int(b)%len(alphanumeric)])
	}
	return string(out), nil
}

// WellFormed reports whether raw has the exact expected shape. It is a
// length-and-tag check only; callers use it to reject garbage before any
// database or bcrypt work.
func WellFormed(raw string) bool {
	return len(raw) == TotalLen && raw[:len(Tag)] == Tag
}

// Prefix returns the public index slice of a plaintext credential.
func Prefix(raw string) string {
	return raw[:PrefixLen]
}

// Hash bcrypt-hashes a plaintext credential for storage.
func Hash(raw string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Match compares a plaintext credential against a stored bcrypt hash.
func Match(hash, raw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw)) == nil
}
