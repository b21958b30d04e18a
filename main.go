// The main package for the tendercrawler executable.
package main

import (
	"github.com/JakeFAU/eop-tender-crawler/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
