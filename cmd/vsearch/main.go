// Command vsearch ranks documents by cosine similarity to a query, either
// once from the terminal or as an HTTP service.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
