package keygen

import (
	"crypto/rand"
	"fmt"
)

const alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// 248 is the largest multiple of 62 below 256; bytes above it are rejected
// so every symbol is equally likely.
const maxRandomByte = 248

// Token returns a random base62 string of the given length read from crypto/rand.
func Token(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("keygen: invalid token length %d", length)
	}

	out := make([]byte, length)
	buf := make([]byte, length*2)
	written := 0

	for written < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("keygen: read random bytes: %w", err)
		}
		for _, b := range buf {
			if b >= maxRandomByte {
				continue
			}
			out[written] = alphabet[int(b)%len(alphabet)]
			written++
			if written == length {
				break
			}
		}
	}

	return string(out), nil
}

// Prefixed returns prefix followed by a random token of the given length.
func Prefixed(prefix string, length int) (string, error) {
	tok, err := Token(length)
	if err != nil {
		return "", err
	}
	return prefix + tok, nil
}
