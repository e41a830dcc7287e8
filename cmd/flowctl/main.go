package main

import "github.com/znicholasbrown/flowctl/internal/cmd"

func main() {
	cmd.Execute()
}
