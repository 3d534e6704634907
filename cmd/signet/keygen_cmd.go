package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"signet/internal/config"
	cryptoinfra "signet/internal/infra/crypto"
	"signet/internal/infra/keys/soft"
)

type keygenOutput struct {
	KeyID           string `json:"key_id"`
	SeedHex         string `json:"seed_hex,omitempty"`
	PublicKeyHex    string `json:"public_key_hex"`
	PublicKeyBase64 string `json:"public_key_base64"`
}

// runKeygen produces a platform signing key. The seed goes to stdout
// unless --seed-out names a file, in which case stdout carries only the
// public half.
func runKeygen(args []string) int {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var keyID string
	var seedOut string
	var outPath string
	fs.StringVar(&keyID, "key-id", "", "key id (default derived from the public key)")
	fs.StringVar(&seedOut, "seed-out", "", "write the seed hex to this file instead of stdout")
	fs.StringVar(&outPath, "out", "", "output JSON path (default stdout)")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	seed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		fmt.Fprintf(os.Stderr, "generate seed: %v\n", err)
		return 1
	}
	seedHex := hex.EncodeToString(seed)

	// Round-trip through the manager so the reported key id and public
	// key are exactly what signetd derives from SIGNING_KEY_SEED_HEX.
	keys, err := soft.NewManagerFromConfig(config.Config{
		SigningKeySeedHex: seedHex,
		SigningKeyID:      keyID,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "build key manager: %v\n", err)
		return 1
	}
	pub := keys.PublicKey()

	output := keygenOutput{
		KeyID:           keys.KeyID(),
		SeedHex:         seedHex,
		PublicKeyHex:    hex.EncodeToString(pub),
		PublicKeyBase64: base64.StdEncoding.EncodeToString(pub),
	}
	if seedOut != "" {
		if err := os.WriteFile(seedOut, []byte(seedHex+"\n"), 0o600); err != nil {
			fmt.Fprintf(os.Stderr, "write seed: %v\n", err)
			return 1
		}
		output.SeedHex = ""
	}

	out, err := cryptoinfra.CanonicalizeAny(output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode output: %v\n", err)
		return 1
	}
	if err := writeOutput(outPath, out); err != nil {
		fmt.Fprintf(os.Stderr, "write output: %v\n", err)
		return 1
	}
	return 0
}
