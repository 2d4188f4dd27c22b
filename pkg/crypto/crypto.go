package crypto

import (
	"crypto/rand"
	"encoding/base32"
	"encoding/base64"
	"errors"
	"math/big"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"
	"golang.org/x/crypto/bcrypt"
)

// CodeAlphabet is the character set used for generated referral code suffixes.
const CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// HashSecret returns a bcrypt hash of the supplied secret.
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifySecret compares the hashed secret with the plaintext candidate.
func VerifySecret(hashed, candidate string) bool {
	if hashed == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(candidate)) == nil
}

// GenerateToken returns a random URL-safe token of the requested byte length.
func GenerateToken(length int) (string, error) {
	buffer := make([]byte, length)
	if _, err := rand.Read(buffer); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buffer), nil
}

// RandomString draws n characters uniformly from alphabet.
func RandomString(alphabet string, n int) (string, error) {
	if alphabet == "" || n <= 0 {
		return "", errors.New("crypto: alphabet and length are required")
	}

	limit := big.NewInt(int64(len(alphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		out[i] = alphabet[idx.Int64()]
	}
	return string(out), nil
}

// GeneratePasscode derives a numeric one-time code from a fresh random HOTP secret.
// digits must be 6 or 8.
func GeneratePasscode(digits int, now time.Time) (string, error) {
	d := otp.DigitsSix
	if digits == 8 {
		d = otp.DigitsEight
	}

	seed := make([]byte, 20)
	if _, err := rand.Read(seed); err != nil {
		return "", err
	}
	secret := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(seed)

	return hotp.GenerateCodeCustom(secret, uint64(now.Unix()), hotp.ValidateOpts{
		Digits:    d,
		Algorithm: otp.AlgorithmSHA1,
	})
}
