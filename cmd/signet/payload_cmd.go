package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	cryptoinfra "signet/internal/infra/crypto"
)

// runPayload extracts the signable payload from a certificate artifact:
// the exact canonical bytes the platform key signed.
func runPayload(args []string) int {
	fs := flag.NewFlagSet("payload", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var inPath string
	var outPath string
	fs.StringVar(&inPath, "in", "", "certificate artifact JSON path")
	fs.StringVar(&outPath, "out", "", "output path (default stdout)")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if inPath == "" {
		fmt.Fprintln(os.Stderr, "payload requires --in")
		return 1
	}

	artifact, err := os.ReadFile(inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read certificate: %v\n", err)
		return 1
	}
	var envelope struct {
		Certificate struct {
			Payload json.RawMessage `json:"payload"`
		} `json:"certificate"`
	}
	if err := json.Unmarshal(artifact, &envelope); err != nil {
		fmt.Fprintf(os.Stderr, "decode certificate: %v\n", err)
		return 1
	}
	if len(envelope.Certificate.Payload) == 0 {
		fmt.Fprintln(os.Stderr, "certificate has no payload")
		return 1
	}

	canonical, err := cryptoinfra.CanonicalizeJSON(envelope.Certificate.Payload)
	if err != nil {
		fmt.Fprintf(os.Stderr, "canonicalize payload: %v\n", err)
		return 1
	}
	if err := writeOutput(outPath, canonical); err != nil {
		fmt.Fprintf(os.Stderr, "write output: %v\n", err)
		return 1
	}
	return 0
}
