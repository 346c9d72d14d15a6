package cards

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// issuerPrefix is the BIN all generated card numbers share.
const issuerPrefix = "4"

// GenerateNumber produces a 16-digit card number with a valid Luhn check
// digit.
func GenerateNumber() (string, error) {
	digits := make([]byte, 16)
	copy(digits, issuerPrefix)
	for i := len(issuerPrefix); i < 15; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("generate card number: %w", err)
		}
		digits[i] = byte('0' + n.Int64())
	}
	digits[15] = luhnCheckDigit(digits[:15])
	return string(digits), nil
}

// generateCVV produces a 3-digit security code. It is returned to the
// cardholder once at issuance and never stored.
func generateCVV() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000))
	if err != nil {
		return "", fmt.Errorf("generate cvv: %w", err)
	}
	return fmt.Sprintf("%03d", n.Int64()), nil
}

func luhnCheckDigit(digits []byte) byte {
	sum := 0
	double := true
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return byte('0' + (10-sum%10)%10)
}

// MaskNumber hides all but the last four digits, e.g. "**** **** **** 1234".
func MaskNumber(number string) string {
	if len(number) < 4 {
		return number
	}
	return "**** **** **** " + number[len(number)-4:]
}

// validLuhn reports whether the full number passes the Luhn checksum.
func validLuhn(number string) bool {
	if len(number) == 0 || strings.ContainsFunc(number, func(r rune) bool { return r < '0' || r > '9' }) {
		return false
	}
	return luhnCheckDigit([]byte(number[:len(number)-1])) == number[len(number)-1]
}
