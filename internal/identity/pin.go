package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
)

var pinPattern = regexp.MustCompile(`^[0-9]{4}$`)

func validPINCode(code string) bool { return pinPattern.MatchString(code) }

// hashPIN binds the code to the participant so identical codes across
// participants produce distinct hashes.
func hashPIN(participantID, code string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s", participantID, code)))
	return hex.EncodeToString(sum[:])
}
