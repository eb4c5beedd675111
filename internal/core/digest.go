package core

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// DigestSize is the length in bytes of a content digest.
const DigestSize = md5.Size

// Digest is the content fingerprint of an executable's on-disk bytes.
//
// Two digests are equal iff the hashed content is byte-identical. MD5 is used
// for compatibility with registries produced by the earlier plotting scripts;
// it detects change, it is not a security boundary.
type Digest [DigestSize]byte

// String returns the lowercase hex form used in the registry file.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// IsZero reports whether d is the zero digest.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// ParseDigest decodes the hex form produced by Digest.String.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	raw, err := hex.DecodeString(s)
	if err != nil {
		return d, fmt.Errorf("decoding digest %q: %w", s, err)
	}
	if len(raw) != DigestSize {
		return d, fmt.Errorf("digest %q has %d bytes, want %d", s, len(raw), DigestSize)
	}
	copy(d[:], raw)
	return d, nil
}

// DigestOf reads the full content of the file at path and returns its digest.
//
// A missing or inaccessible file yields an *UnreadableExecutableError.
func DigestOf(path string) (Digest, error) {
	var d Digest
	f, err := os.Open(path)
	if err != nil {
		return d, &UnreadableExecutableError{Path: path, Cause: err}
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return d, &UnreadableExecutableError{Path: path, Cause: err}
	}
	copy(d[:], h.Sum(nil))
	return d, nil
}
