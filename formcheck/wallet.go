package formcheck

import (
	"encoding/hex"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
)

var walletRe = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

// IsWalletAddress reports whether s is "0x" followed by 40 hex digits.
func IsWalletAddress(s string) bool { return walletRe.MatchString(s) }

// IsMixedCase reports whether the hex digits of an address mix upper and
// lower case letters. The "0x" prefix is ignored.
func IsMixedCase(addr string) bool {
	h := strings.TrimPrefix(addr, "0x")
	return h != strings.ToLower(h) && h != strings.ToUpper(h)
}

// IsENSName reports whether s looks like an ENS name.
func IsENSName(s string) bool { return strings.HasSuffix(strings.ToLower(s), ".eth") }

// ChecksumVerifier decides whether a mixed-case address carries a valid
// checksum.
type ChecksumVerifier interface {
	ValidChecksum(addr string) bool
}

// ChecksumFunc adapts a function to ChecksumVerifier.
type ChecksumFunc func(addr string) bool

func (f ChecksumFunc) ValidChecksum(addr string) bool { return f(addr) }

var (
	// EIP55 verifies the mixed-case checksum encoding (Keccak-256).
	EIP55 ChecksumVerifier = ChecksumFunc(func(addr string) bool {
		return IsWalletAddress(addr) && ChecksumAddress(addr) == addr
	})

	// PassThroughChecksum accepts every address.
	PassThroughChecksum ChecksumVerifier = ChecksumFunc(func(string) bool { return true })
)

// ChecksumAddress returns the EIP-55 encoding of a well-formed address.
func ChecksumAddress(addr string) string {
	lower := strings.ToLower(strings.TrimPrefix(addr, "0x"))
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(lower))
	sum := hex.EncodeToString(h.Sum(nil))

	out := []byte(lower)
	for i, c := range out {
		if c >= 'a' && c <= 'f' && sum[i] >= '8' {
			out[i] = c - 'a' + 'A'
		}
	}
	return "0x" + string(out)
}
