package main

import "github.com/joeblau/jsonsplit/cmd"

func main() {
	cmd.Execute()
}
