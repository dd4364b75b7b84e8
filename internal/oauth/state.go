package oauth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"strings"
)

// stateBytes is the amount of randomness in a state value (256 bits).
const stateBytes = 32

func generateState() (string, error) {
	b := make([]byte, stateBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func constantTimeEquals(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// NormalizeScopes trims, splits on whitespace and removes duplicates while
// keeping the first-seen order.
func NormalizeScopes(input []string) []string {
	seen := make(map[string]struct{}, len(input))
	result := make([]string, 0, len(input))
	for _, value := range input {
		for _, s := range strings.Fields(value) {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			result = append(result, s)
		}
	}
	return result
}
