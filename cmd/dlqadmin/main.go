// Package main provides dlqadmin, an operator CLI over the ingestion
// service's dead-letter queue admin surface: listing, inspecting,
// retrying, and discarding entries that failed ingestion.
package main

import "os"

func main() {
	root := newRootCommand()

	if err := root.Execute(); err != nil {
		os.Exit(getExitCode(err))
	}
}
