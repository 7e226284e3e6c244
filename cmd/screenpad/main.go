package main

import "github.com/screenpad/screenpad/cmd/screenpad/commands"

func main() {
	commands.Execute()
}
