package main

import "github.com/aetherium/aetherium-cli/cmd"

func main() {
	cmd.Execute()
}
