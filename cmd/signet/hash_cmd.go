package main

import (
	"flag"
	"fmt"
	"os"

	cryptoinfra "signet/internal/infra/crypto"
)

type hashOutput struct {
	Alg       string `json:"alg"`
	Hash      string `json:"hash"`
	MediaType string `json:"media_type,omitempty"`
}

// runHash prints the hash the signing service would record for a
// document. Without --media-type the bytes hash as-is, which is what
// the sign endpoint does; with it, the content is canonicalized first.
func runHash(args []string) int {
	fs := flag.NewFlagSet("hash", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var inPath string
	var mediaType string
	var outPath string
	fs.StringVar(&inPath, "in", "", "input document path")
	fs.StringVar(&mediaType, "media-type", "", "canonicalize for this media type before hashing")
	fs.StringVar(&outPath, "out", "", "output JSON path (default stdout)")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if inPath == "" {
		fmt.Fprintln(os.Stderr, "hash requires --in")
		return 1
	}

	input, err := os.ReadFile(inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read document: %v\n", err)
		return 1
	}
	digest, err := cryptoinfra.HashDocument(mediaType, input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hash document: %v\n", err)
		return 1
	}

	out, err := cryptoinfra.CanonicalizeAny(hashOutput{Alg: "sha256", Hash: digest, MediaType: mediaType})
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
