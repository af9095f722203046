// Command fshc imports FHIR Shorthand files and reports their diagnostics.
//
// Usage:
//
//	fshc import [flags] <file-or-directory>...
//	fshc version
package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
