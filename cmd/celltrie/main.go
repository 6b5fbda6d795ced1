// Command celltrie inspects and maintains celltrie checkpoints stored in a
// blob store.
//
//	celltrie --config celltrie.yaml inspect
//	celltrie get 8928308280fffff '"vehicle-17"'
//	celltrie subtree 85283083fffffff --limit 20
//	celltrie recompress --compression lz4
//	celltrie prune --keep 3
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
