// Command chmerge is the CLI front end for the merge engine: analyze and
// merge run a single merge locally, serve exposes the admin HTTP surface
// for submitting merges as background jobs.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
