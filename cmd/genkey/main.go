// Command genkey generates an Ed25519 signing key pair for license
// issuance. The private key hex goes into UG_SECRETS_PRIVATE_KEY_HEX on
// the server; the public key hex is compiled into the client-side
// validator.
package main

import (
	"fmt"
	"os"

	"github.com/MyysticOwl/undergrowth-website/internal/license"
)

func main() {
	pubHex, privHex, err := license.GenerateKeyPair()
	if err != nil {
		fmt.Fprintf(os.Stderr, "genkey: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("public key (embed in the validator):\n  %s\n\n", pubHex)
	fmt.Printf("private key (set as UG_SECRETS_PRIVATE_KEY_HEX, keep secret):\n  %s\n", privHex)
}
