package handshake

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"fmt"
	"io"

	"github.com/idanmel/skyarena/internal/protocol"
)

// SessionKeySize is the AES-256 session key length negotiated per connection.
const SessionKeySize = 32

// Service performs the per-connection key exchange. One RSA keypair is
// generated at startup and reused for the life of the process.
type Service struct {
	private *rsa.PrivateKey
	pubDER  []byte
}

// New generates the server keypair.
func New() (*Service, error) {
	private, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("generating server keypair: %w", err)
	}

	pubDER, err := x509.MarshalPKIXPublicKey(&private.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("serializing public key: %w", err)
	}

	return &Service{private: private, pubDER: pubDER}, nil
}

// Establish runs the server side of the handshake on a fresh connection:
// send the public key, receive the client's RSA-encrypted session key,
// decrypt it. Any malformed or undecryptable key material fails the
// handshake and the caller must drop the connection.
func (s *Service) Establish(conn io.ReadWriter) ([]byte, error) {
	frame, err := protocol.EncodeFrame(s.pubDER, nil)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write(frame); err != nil {
		return nil, fmt.Errorf("sending public key: %w", err)
	}

	encrypted, err := protocol.DecodeFrame(conn, nil)
	if err != nil {
		return nil, fmt.Errorf("receiving session key: %w", err)
	}

	key, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, s.private, encrypted, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypting session key: %w", err)
	}
	if len(key) != SessionKeySize {
		return nil, fmt.Errorf("session key is %d bytes, want %d", len(key), SessionKeySize)
	}

	return key, nil
}

// ClientEstablish runs the client side: receive the server's public key,
// generate a random session key, send it back RSA-encrypted.
func ClientEstablish(conn io.ReadWriter) ([]byte, error) {
	pubDER, err := protocol.DecodeFrame(conn, nil)
	if err != nil {
		return nil, fmt.Errorf("receiving public key: %w", err)
	}

	parsed, err := x509.ParsePKIXPublicKey(pubDER)
	if err != nil {
		return nil, fmt.Errorf("parsing public key: %w", err)
	}
	public, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("server key is %T, want RSA", parsed)
	}

	key := make([]byte, SessionKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}

	encrypted, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, public, key, nil)
	if err != nil {
		return nil, fmt.Errorf("encrypting session key: %w", err)
	}

	frame, err := protocol.EncodeFrame(encrypted, nil)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write(frame); err != nil {
		return nil, fmt.Errorf("sending session key: %w", err)
	}

	return key, nil
}
