package secure_access

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"

	"github.com/horockey/fit/internal/model"
	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

// Sealer encrypts secret keys at rest with NaCl secretbox. The nonce is
// prepended to the box.
type Sealer struct {
	key [32]byte
}

// NewSealer derives the box key from passphrase.
func NewSealer(passphrase string) *Sealer {
	return &Sealer{key: sha256.Sum256([]byte(passphrase))}
}

func (s *Sealer) Seal(plain []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plain, &nonce, &s.key), nil
}

func (s *Sealer) Open(box []byte) ([]byte, error) {
	if len(box) < nonceSize+secretbox.Overhead {
		return nil, model.NewError(model.CodeInternal, "sealed key of %d bytes is too short", len(box))
	}

	var nonce [nonceSize]byte
	copy(nonce[:], box[:nonceSize])

	plain, ok := secretbox.Open(nil, box[nonceSize:], &nonce, &s.key)
	if !ok {
		return nil, model.NewError(model.CodeInternal, "sealed key does not open")
	}
	return plain, nil
}

// Sign is the HMAC-SHA256 of "ak:timestamp" under sk, hex encoded.
func Sign(sk []byte, ak string, timestamp int64) string {
	mac := hmac.New(sha256.New, sk)
	mac.Write([]byte(ak + ":" + strconv.FormatInt(timestamp, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

func verify(sk []byte, ak string, timestamp int64, signature string) bool {
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	want, _ := hex.DecodeString(Sign(sk, ak, timestamp))
	return hmac.Equal(got, want)
}
