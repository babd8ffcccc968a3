// Copyright 2025 Certen Protocol
//
// Standalone proof-verify CLI: reads a proof bundle (path argument or
// "-" for stdin), prints its fields, and verifies Merkle reconstruction
// and (when present) anchor-root equality. Exit 0 iff both succeed
// (spec.md §6). Grounded on the teacher's own minimal cmd/ tools: plain
// flag/os.Args, no CLI framework — cobra rides along only as an indirect
// dependency of golangci-lint and is never imported directly anywhere in
// the corpus's own commands.

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/OffSec-Global/offsec-shield/pkg/merkle"
)

type proofBundle struct {
	Leaf   string             `json:"leaf"`
	Path   []merkle.PathStep  `json:"path"`
	Root   string             `json:"root"`
	Anchor *anchorRef         `json:"anchor,omitempty"`
}

type anchorRef struct {
	Root string `json:"root"`
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s <proof-bundle.json|->\n", os.Args[0])
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(flag.Arg(0), os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "proof-verify: %v\n", err)
		os.Exit(1)
	}
}

func run(path string, out io.Writer) error {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("read proof bundle: %w", err)
	}

	var bundle proofBundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return fmt.Errorf("parse proof bundle: %w", err)
	}

	fmt.Fprintf(out, "leaf:        %s\n", bundle.Leaf)
	fmt.Fprintf(out, "root:        %s\n", bundle.Root)
	fmt.Fprintf(out, "path length: %d\n", len(bundle.Path))

	if !merkle.Verify(bundle.Leaf, bundle.Path, bundle.Root) {
		return fmt.Errorf("merkle proof verification failed")
	}
	fmt.Fprintln(out, "merkle reconstruction: OK")

	if bundle.Anchor != nil {
		if bundle.Anchor.Root != bundle.Root {
			return fmt.Errorf("anchor.root does not match root")
		}
		fmt.Fprintln(out, "anchor consistency: OK")
	}

	return nil
}
