package main

import "github.com/driftnet-io/drift-agent/cmd"

func main() {
	cmd.Execute()
}
