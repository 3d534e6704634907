package crypto

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"unicode/utf8"
)

func SHA256Bytes(input []byte) []byte {
	sum := sha256.Sum256(input)
	return sum[:]
}

func SHA256Hex(input []byte) string {
	return hex.EncodeToString(SHA256Bytes(input))
}

// HashDocument hashes document content after canonicalizing it for its
// media type. Binary and unknown types hash as-is; text gets line
// endings normalized; JSON is canonicalized so formatting differences
// do not change the hash.
func HashDocument(mediaType string, input []byte) (string, error) {
	canonical, err := CanonicalizeDocument(mediaType, input)
	if err != nil {
		return "", err
	}
	return SHA256Hex(canonical), nil
}

func CanonicalizeDocument(mediaType string, input []byte) ([]byte, error) {
	switch normalizeMediaType(mediaType) {
	case "text/plain":
		return canonicalizeText(input)
	case "application/json":
		return CanonicalizeJSON(input)
	default:
		return input, nil
	}
}

func canonicalizeText(input []byte) ([]byte, error) {
	if !utf8.Valid(input) {
		return nil, errors.New("invalid UTF-8")
	}
	return bytes.ReplaceAll(input, []byte("\r\n"), []byte("\n")), nil
}

func normalizeMediaType(mediaType string) string {
	mediaType = strings.TrimSpace(mediaType)
	if mediaType == "" {
		return ""
	}
	parts := strings.SplitN(mediaType, ";", 2)
	return strings.ToLower(strings.TrimSpace(parts[0]))
}
