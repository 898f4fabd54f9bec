package main

import "github.com/frostaag/diagrams-v2/cmd"

func main() {
	cmd.Execute()
}
