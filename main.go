// The main package for the siteaudit executable.
package main

import (
	"github.com/avalonreset/siteaudit/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
