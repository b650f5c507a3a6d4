package protocol

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"strconv"

	"github.com/idanmel/skyarena/internal/model"
)

// Wire framing: a 9-digit zero-padded decimal length followed by a '|'
// delimiter, then exactly that many payload bytes. When a session key is
// present the payload is AES-CBC encrypted (PKCS#7 padded, random IV
// prepended) and base64-encoded before length-prefixing.
const (
	headerDigits = 9
	headerSize   = headerDigits + 1 // digits + '|'

	// MaxPayload is the largest payload the 9-digit header can describe.
	MaxPayload = 999_999_998
)

// EncodeFrame length-prefixes payload for the wire. If key is non-nil the
// payload is encrypted first. The returned slice is ready to write in one call.
func EncodeFrame(payload []byte, key []byte) ([]byte, error) {
	if key != nil {
		enc, err := encryptPayload(payload, key)
		if err != nil {
			return nil, err
		}
		payload = enc
	}
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("%w: payload of %d bytes exceeds frame limit", model.ErrBadFrame, len(payload))
	}

	buf := make([]byte, 0, headerSize+len(payload))
	buf = append(buf, fmt.Sprintf("%09d|", len(payload))...)
	buf = append(buf, payload...)
	return buf, nil
}

// DecodeFrame reads exactly one frame from r, blocking until the full header
// and then the full payload have arrived. A connection closed before a
// complete frame is delivered yields io.EOF and no data; a partial frame is
// never returned. If key is non-nil the payload is decrypted.
func DecodeFrame(r io.Reader, key []byte) ([]byte, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		// Partial data is no data: a close mid-header is a plain disconnect.
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return nil, err
	}

	if header[headerDigits] != '|' {
		return nil, fmt.Errorf("%w: bad header delimiter %q", model.ErrBadFrame, header[headerDigits])
	}
	// Only ASCII digits are a valid length; strconv.Atoi alone would also
	// accept a sign, and a negative size must never reach make.
	for _, b := range header[:headerDigits] {
		if b < '0' || b > '9' {
			return nil, fmt.Errorf("%w: non-numeric length header", model.ErrBadFrame)
		}
	}
	size, err := strconv.Atoi(string(header[:headerDigits]))
	if err != nil {
		return nil, fmt.Errorf("%w: non-numeric length header", model.ErrBadFrame)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return nil, err
	}

	if key != nil {
		return decryptPayload(payload, key)
	}
	return payload, nil
}

// encryptPayload pads, encrypts under a fresh IV, and base64-encodes.
func encryptPayload(plain []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	padded := pkcs7Pad(plain, aes.BlockSize)
	out := make([]byte, aes.BlockSize+len(padded))
	iv := out[:aes.BlockSize]
	if _, err := rand.Read(iv); err != nil {
		return nil, err
	}

	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[aes.BlockSize:], padded)

	enc := make([]byte, base64.StdEncoding.EncodedLen(len(out)))
	base64.StdEncoding.Encode(enc, out)
	return enc, nil
}

// decryptPayload reverses encryptPayload exactly.
func decryptPayload(data []byte, key []byte) ([]byte, error) {
	raw := make([]byte, base64.StdEncoding.DecodedLen(len(data)))
	n, err := base64.StdEncoding.Decode(raw, data)
	if err != nil {
		return nil, fmt.Errorf("%w: payload is not valid base64", model.ErrBadFrame)
	}
	raw = raw[:n]

	if len(raw) < aes.BlockSize || len(raw)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext length %d", model.ErrBadFrame, len(raw))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	iv, ct := raw[:aes.BlockSize], raw[aes.BlockSize:]
	plain := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ct)

	return pkcs7Unpad(plain, aes.BlockSize)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(append([]byte{}, data...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("%w: bad padded length %d", model.ErrBadFrame, len(data))
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, fmt.Errorf("%w: bad padding byte %d", model.ErrBadFrame, n)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("%w: inconsistent padding", model.ErrBadFrame)
		}
	}
	return data[:len(data)-n], nil
}
