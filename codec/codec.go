// Package codec converts payloads between raw bytes, MIME-style base64
// text and gzip, the encodings used on the wire by HTTP work sources.
package codec

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
)

// lineLength is the number of base64 characters per encoded line.
const lineLength = 76

// EncodeBase64 encodes b as standard base64 split into lines of 76
// characters, each terminated by a newline. Empty input encodes to an
// empty slice.
func EncodeBase64(b []byte) []byte {
	if len(b) == 0 {
		return []byte{}
	}
	enc := base64.StdEncoding.EncodeToString(b)

	var out bytes.Buffer
	out.Grow(len(enc) + len(enc)/lineLength + 1)
	for len(enc) > lineLength {
		out.WriteString(enc[:lineLength])
		out.WriteByte('\n')
		enc = enc[lineLength:]
	}
	out.WriteString(enc)
	out.WriteByte('\n')
	return out.Bytes()
}

// DecodeBase64 decodes standard base64, ignoring line breaks and
// surrounding whitespace.
func DecodeBase64(b []byte) ([]byte, error) {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, string(b))

	out, err := base64.StdEncoding.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("codec: decode base64: %w", err)
	}
	return out, nil
}

// StringToBase64 encodes the UTF-8 bytes of s.
func StringToBase64(s string) string { return string(EncodeBase64([]byte(s))) }

// BytesToBase64 encodes b to a base64 string.
func BytesToBase64(b []byte) string { return string(EncodeBase64(b)) }

// Base64ToString decodes s and returns the result as a string.
func Base64ToString(s string) (string, error) {
	b, err := DecodeBase64([]byte(s))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Base64ToBytes decodes s.
func Base64ToBytes(s string) ([]byte, error) { return DecodeBase64([]byte(s)) }

// Gzip compresses b.
func Gzip(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(b); err != nil {
		return nil, fmt.Errorf("codec: gzip: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("codec: gzip: %w", err)
	}
	return buf.Bytes(), nil
}

// Gunzip decompresses a gzip stream.
func Gunzip(b []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("codec: gunzip: %w", err)
	}
	defer zr.Close()

	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("codec: gunzip: %w", err)
	}
	return out, nil
}

// GzipBase64String compresses s and encodes the result as base64.
func GzipBase64String(s string) (string, error) {
	z, err := Gzip([]byte(s))
	if err != nil {
		return "", err
	}
	return BytesToBase64(z), nil
}

// GzipBase64Bytes compresses s and returns the base64 encoding as bytes.
func GzipBase64Bytes(s string) ([]byte, error) {
	z, err := Gzip([]byte(s))
	if err != nil {
		return nil, err
	}
	return EncodeBase64(z), nil
}

// GunzipBase64String reverses GzipBase64String.
func GunzipBase64String(s string) (string, error) {
	z, err := DecodeBase64([]byte(s))
	if err != nil {
		return "", err
	}
	b, err := Gunzip(z)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
