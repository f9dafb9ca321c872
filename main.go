package main

import "github.com/novusbot/novus/cmd"

func main() {
	cmd.Execute()
}
