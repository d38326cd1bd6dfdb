package agent

import (
	"crypto/rand"
	"fmt"
)

// generateToken creates a cryptographically random 256-bit agent token,
// URL-safe hex encoded, per §4.4 step 3 ("≥ 256 bits, URL-safe encoding").
func generateToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return fmt.Sprintf("agt_%x", b)
}
