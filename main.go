package main

import "github.com/alexgetty/roux/cmd"

func main() {
	cmd.Execute()
}
