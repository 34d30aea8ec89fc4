package main

import "github.com/XPrime17/moltworker/cmd/moltworker/cmd"

func main() {
	cmd.Execute()
}
