// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Launchgate Contributors

// Package keys manages the gateway RSA keypair. The public key ships
// inside the launcher binary; the private key stays on the server and is
// used to decrypt request passwords and sign distributable profiles.
package keys

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

// KeyBits is the RSA modulus size for generated keypairs.
const KeyBits = 2048

// File names inside the keys directory.
const (
	PrivateKeyFile = "gateway.key"
	PublicKeyFile  = "gateway.pub"
)

// Pair holds the gateway keypair.
type Pair struct {
	Private *rsa.PrivateKey
	Public  *rsa.PublicKey
}

// Generate creates a fresh RSA keypair.
func Generate() (*Pair, error) {
	key, err := rsa.GenerateKey(rand.Reader, KeyBits)
	if err != nil {
		return nil, oops.Code("KEYS_GENERATE_FAILED").Wrap(err)
	}
	return &Pair{Private: key, Public: &key.PublicKey}, nil
}

// Save writes the keypair as PEM files into dir. The private key file is
// created with 0600 permissions.
func (p *Pair) Save(dir string) error {
	privDER := x509.MarshalPKCS1PrivateKey(p.Private)
	privPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: privDER})
	if err := os.WriteFile(filepath.Join(dir, PrivateKeyFile), privPEM, 0o600); err != nil {
		return oops.Code("KEYS_SAVE_FAILED").With("file", PrivateKeyFile).Wrap(err)
	}

	pubDER, err := x509.MarshalPKIXPublicKey(p.Public)
	if err != nil {
		return oops.Code("KEYS_SAVE_FAILED").With("file", PublicKeyFile).Wrap(err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	if err := os.WriteFile(filepath.Join(dir, PublicKeyFile), pubPEM, 0o644); err != nil {
		return oops.Code("KEYS_SAVE_FAILED").With("file", PublicKeyFile).Wrap(err)
	}
	return nil
}

// Load reads the keypair PEM files from dir.
func Load(dir string) (*Pair, error) {
	privPEM, err := os.ReadFile(filepath.Join(dir, PrivateKeyFile))
	if err != nil {
		return nil, oops.Code("KEYS_LOAD_FAILED").With("dir", dir).Wrap(err)
	}
	block, _ := pem.Decode(privPEM)
	if block == nil || block.Type != "RSA PRIVATE KEY" {
		return nil, oops.Code("KEYS_LOAD_FAILED").
			With("dir", dir).
			Errorf("private key file is not a PEM-encoded RSA key")
	}
	priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, oops.Code("KEYS_LOAD_FAILED").With("dir", dir).Wrap(err)
	}
	return &Pair{Private: priv, Public: &priv.PublicKey}, nil
}

// Exists reports whether a private key file is present in dir.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, PrivateKeyFile))
	return err == nil || !os.IsNotExist(err)
}

// DecryptPassword decrypts a password blob encrypted by the launcher
// with the gateway public key.
func (p *Pair) DecryptPassword(encrypted []byte) (string, error) {
	plain, err := rsa.DecryptPKCS1v15(rand.Reader, p.Private, encrypted)
	if err != nil {
		return "", oops.Code("KEYS_DECRYPT_FAILED").Wrap(err)
	}
	return string(plain), nil
}

// EncryptPassword encrypts a password with the public key. Used by the
// launcher client; kept here so tests exercise the full round trip.
func (p *Pair) EncryptPassword(password string) ([]byte, error) {
	blob, err := rsa.EncryptPKCS1v15(rand.Reader, p.Public, []byte(password))
	if err != nil {
		return nil, oops.Code("KEYS_ENCRYPT_FAILED").Wrap(err)
	}
	return blob, nil
}

// Sign produces a SHA-256 PKCS1v15 signature over payload.
func (p *Pair) Sign(payload []byte) ([]byte, error) {
	digest := sha256.Sum256(payload)
	sig, err := rsa.SignPKCS1v15(rand.Reader, p.Private, crypto.SHA256, digest[:])
	if err != nil {
		return nil, oops.Code("KEYS_SIGN_FAILED").Wrap(err)
	}
	return sig, nil
}

// Verify checks a SHA-256 PKCS1v15 signature over payload.
func (p *Pair) Verify(payload, sig []byte) error {
	digest := sha256.Sum256(payload)
	if err := rsa.VerifyPKCS1v15(p.Public, crypto.SHA256, digest[:], sig); err != nil {
		return oops.Code("KEYS_VERIFY_FAILED").Wrap(err)
	}
	return nil
}
