// Package main wires together the tender crawler binary.
package main

import "github.com/JakeFAU/eop-tender-crawler/cmd"

func main() {
	cmd.Execute()
}
