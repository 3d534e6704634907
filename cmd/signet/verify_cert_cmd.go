package main

import (
	"crypto/ed25519"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	cryptoinfra "signet/internal/infra/crypto"
	"signet/pkg/certverify"
)

type verifyCertOutput struct {
	Valid         bool      `json:"valid"`
	CertificateID string    `json:"certificate_id"`
	DocumentID    string    `json:"document_id"`
	DocumentType  string    `json:"document_type,omitempty"`
	DocumentHash  string    `json:"document_hash"`
	Signer        signerDoc `json:"signer"`
	SignedAt      string    `json:"signed_at"`
	KeyID         string    `json:"key_id"`
	DocumentMatch *bool     `json:"document_match,omitempty"`
}

type signerDoc struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

func runVerifyCert(args []string) int {
	fs := flag.NewFlagSet("verify-cert", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var inPath string
	var pubHex string
	var pubBase64 string
	var documentPath string
	var outPath string
	fs.StringVar(&inPath, "in", "", "certificate artifact JSON path")
	fs.StringVar(&pubHex, "pubkey-hex", "", "platform ed25519 public key hex")
	fs.StringVar(&pubBase64, "pubkey-base64", "", "platform ed25519 public key base64")
	fs.StringVar(&documentPath, "document", "", "document path to check against the certified hash")
	fs.StringVar(&outPath, "out", "", "output JSON path (default stdout)")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if inPath == "" {
		fmt.Fprintln(os.Stderr, "verify-cert requires --in")
		return 1
	}
	if (pubHex == "" && pubBase64 == "") || (pubHex != "" && pubBase64 != "") {
		fmt.Fprintln(os.Stderr, "verify-cert requires exactly one of --pubkey-hex or --pubkey-base64")
		return 1
	}

	pubKey, err := parsePublicKey(pubHex, pubBase64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse public key: %v\n", err)
		return 1
	}
	artifact, err := os.ReadFile(inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read certificate: %v\n", err)
		return 1
	}
	var document []byte
	if documentPath != "" {
		document, err = os.ReadFile(documentPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read document: %v\n", err)
			return 1
		}
	}

	result, err := certverify.Verify(artifact, certverify.Options{
		PlatformPublicKey: pubKey,
		Document:          document,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "verify certificate: %v\n", err)
		return 1
	}

	output := verifyCertOutput{
		Valid:         true,
		CertificateID: result.CertificateID,
		DocumentID:    result.DocumentID,
		DocumentType:  result.DocumentType,
		DocumentHash:  result.DocumentHash,
		Signer: signerDoc{
			ID:    result.Signer.ID,
			Name:  result.Signer.Name,
			Email: result.Signer.Email,
		},
		SignedAt:      result.SignedAt.Format(time.RFC3339Nano),
		KeyID:         result.KeyID,
		DocumentMatch: result.DocumentMatch,
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

func parsePublicKey(hexValue string, b64Value string) (ed25519.PublicKey, error) {
	if hexValue != "" {
		return certverify.ParsePublicKeyHex(hexValue)
	}
	if b64Value != "" {
		return certverify.ParsePublicKeyBase64(b64Value)
	}
	return nil, errors.New("public key is required")
}
