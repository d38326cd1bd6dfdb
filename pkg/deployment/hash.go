package deployment

import (
	"crypto/rand"
	"fmt"
)

// generateDeploymentHash mints the externally visible, opaque deployment
// identifier (§3: "globally unique, externally visible, opaque"), grounded
// on the same crypto/rand token-minting shape used for agent credentials.
func generateDeploymentHash() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("deployment: reading random bytes: %v", err))
	}
	return fmt.Sprintf("dh_%x", b)
}
