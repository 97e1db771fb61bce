// mediaflow runs multimedia retrieval pipelines.
//
// Usage:
//
//	mediaflow run <pipeline> [--json]
//	mediaflow validate <pipeline>...
//	mediaflow operators
//	mediaflow pipelines
//	mediaflow serve
//	mediaflow version
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
