/*
Package main provides the command line tool which measures the CI theater - superficial
adoption of continuous integration - across lists of GitHub repositories. Usage:

	citheater --ci-theater builtin:rust
	citheater --commit-frequency --build-duration --csv out/ repos.yaml
	citheater runs diff <run id> <run id>
*/
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
