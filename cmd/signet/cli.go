package main

import (
	"fmt"
	"os"
	"path/filepath"
)

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	if len(args) < 2 {
		usage(args)
		return 1
	}

	switch args[1] {
	case "hash":
		return runHash(args[2:])
	case "keygen":
		return runKeygen(args[2:])
	case "verify-cert":
		return runVerifyCert(args[2:])
	case "payload":
		return runPayload(args[2:])
	}

	usage(args)
	return 1
}

func usage(args []string) {
	name := "signet"
	if len(args) > 0 && args[0] != "" {
		name = filepath.Base(args[0])
	}
	fmt.Fprintf(os.Stderr, "usage:\n")
	fmt.Fprintf(os.Stderr, "  %s hash --in <file> [--media-type <type>]\n", name)
	fmt.Fprintf(os.Stderr, "  %s keygen [--key-id <id>] [--seed-out <file>]\n", name)
	fmt.Fprintf(os.Stderr, "  %s verify-cert --in <certificate.json> (--pubkey-hex <hex>|--pubkey-base64 <b64>) [--document <file>]\n", name)
	fmt.Fprintf(os.Stderr, "  %s payload --in <certificate.json> [--out <file>]\n", name)
}

func writeOutput(path string, payload []byte) error {
	if path == "" {
		if _, err := os.Stdout.Write(payload); err != nil {
			return err
		}
		_, err := fmt.Fprintln(os.Stdout)
		return err
	}
	return os.WriteFile(path, payload, 0o644)
}
