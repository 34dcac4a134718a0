package main

import "cinehub/cmd/cli/command"

func main() {
	command.Execute()
}
