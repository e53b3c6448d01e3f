package custody

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"

	"github.com/medichain/ssi-custody/pkg/types"
)

var hexAddressPattern = regexp.MustCompile(`^(0x)?[0-9a-fA-F]{40}$`)

// NormalizeAddress validates a wallet address and returns it in EIP-55
// checksum form. A missing 0x prefix is tolerated and added. Mixed-case
// inputs with an invalid checksum are rejected; all-lower and all-upper
// inputs are accepted and re-checksummed.
func NormalizeAddress(address string) (string, error) {
	trimmed := strings.TrimSpace(address)
	if !hexAddressPattern.MatchString(trimmed) {
		return "", types.NewValidationError(types.ErrCodeInvalidAddress,
			fmt.Sprintf("invalid wallet address: %q", address), nil)
	}

	hexPart := strings.TrimPrefix(trimmed, "0x")
	checksummed := checksumAddress(hexPart)

	lower := strings.ToLower(hexPart)
	upper := strings.ToUpper(hexPart)
	if hexPart != lower && hexPart != upper && "0x"+hexPart != checksummed {
		return "", types.NewValidationError(types.ErrCodeInvalidAddress,
			fmt.Sprintf("wallet address checksum mismatch: %q", address), nil)
	}

	return checksummed, nil
}

// checksumAddress applies the EIP-55 mixed-case checksum to a bare
// 40-char hex string and returns the 0x-prefixed result.
func checksumAddress(hexPart string) string {
	lower := strings.ToLower(hexPart)

	hasher := sha3.NewLegacyKeccak256()
	hasher.Write([]byte(lower))
	digest := hasher.Sum(nil)

	result := make([]byte, len(lower))
	for i := 0; i < len(lower); i++ {
		c := lower[i]
		if c >= '0' && c <= '9' {
			result[i] = c
			continue
		}
		// Each address nibble maps to one hash nibble
		hashNibble := digest[i/2]
		if i%2 == 0 {
			hashNibble >>= 4
		}
		if hashNibble&0x0f >= 8 {
			result[i] = c - ('a' - 'A')
		} else {
			result[i] = c
		}
	}
	return "0x" + string(result)
}
