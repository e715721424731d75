// Package fieldcrypt implements authenticated encryption of individual
// sensitive fields and deterministic search-hash derivation for equality
// lookups over encrypted data.
package fieldcrypt

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/avetisov/flashmenu/internal/errs"
)

// Argon2id parameters. Memory-hard, so a fresh per-blob salt keeps offline
// guessing expensive even for short passphrases.
const (
	saltLen = 16
	keyLen  = 32

	argonTime    uint32 = 3
	argonMemory  uint32 = 64 * 1024
	argonThreads uint8  = 1
)

func randBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, keyLen)
}

// Encrypt seals plaintext under a key derived from passphrase and a fresh
// random salt. Blob layout: base64(salt || nonce || ciphertext+tag).
func Encrypt(plaintext, passphrase string) (string, error) {
	salt, err := randBytes(saltLen)
	if err != nil {
		return "", err
	}
	aead, err := chacha20poly1305.NewX(deriveKey(passphrase, salt))
	if err != nil {
		return "", err
	}
	nonce, err := randBytes(chacha20poly1305.NonceSizeX)
	if err != nil {
		return "", err
	}
	out := make([]byte, 0, saltLen+len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, aead.Seal(nil, nonce, []byte(plaintext), nil)...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt opens a blob produced by Encrypt. Any failure (malformed blob,
// forged tag, wrong passphrase) returns errs.ErrDecryption; callers must not
// be able to tell which check failed.
func Decrypt(blob, passphrase string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", errs.ErrDecryption
	}
	if len(raw) < saltLen+chacha20poly1305.NonceSizeX {
		return "", errs.ErrDecryption
	}
	salt := raw[:saltLen]
	nonce := raw[saltLen : saltLen+chacha20poly1305.NonceSizeX]
	ct := raw[saltLen+chacha20poly1305.NonceSizeX:]
	aead, err := chacha20poly1305.NewX(deriveKey(passphrase, salt))
	if err != nil {
		return "", errs.ErrDecryption
	}
	pt, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", errs.ErrDecryption
	}
	return string(pt), nil
}

// SearchHash returns a deterministic one-way hash of value for equality
// lookups without decryption. Unkeyed by design: it must not be derivable
// into the encryption key or the plaintext.
func SearchHash(value string) string {
	norm := strings.ToLower(strings.TrimSpace(value))
	sum := sha256.Sum256([]byte(norm))
	return hex.EncodeToString(sum[:])
}

// searchSuffix marks internal index fields attached by EncryptRecord.
const searchSuffix = "_search"

// encryptedFields is the fixed allowlist of record fields that get encrypted.
// Fields outside the allowlist pass through unchanged.
var encryptedFields = []string{
	"name",
	"description",
	"viewer_name",
	"contact_email",
	"contact_phone",
}

// searchableFields additionally get a deterministic lookup hash.
var searchableFields = map[string]bool{
	"contact_email": true,
	"contact_phone": true,
}

// EncryptRecord encrypts allowlisted fields of rec in place on a copy,
// attaching "<field>_search" hashes for searchable fields.
func EncryptRecord(rec map[string]string, passphrase string) (map[string]string, error) {
	out := make(map[string]string, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	for _, f := range encryptedFields {
		v, ok := out[f]
		if !ok || v == "" {
			continue
		}
		enc, err := Encrypt(v, passphrase)
		if err != nil {
			return nil, err
		}
		out[f] = enc
		if searchableFields[f] {
			out[f+searchSuffix] = SearchHash(v)
		}
	}
	return out, nil
}

// DecryptRecord decrypts allowlisted fields and strips all search-hash
// fields from the output; they are an index artifact, not user data.
func DecryptRecord(rec map[string]string, passphrase string) (map[string]string, error) {
	out := make(map[string]string, len(rec))
	for k, v := range rec {
		if strings.HasSuffix(k, searchSuffix) {
			continue
		}
		out[k] = v
	}
	for _, f := range encryptedFields {
		v, ok := out[f]
		if !ok || v == "" {
			continue
		}
		pt, err := Decrypt(v, passphrase)
		if err != nil {
			return nil, err
		}
		out[f] = pt
	}
	return out, nil
}
