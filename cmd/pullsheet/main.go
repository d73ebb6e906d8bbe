package main

import "github.com/vbonduro/pullsheet/cmd/pullsheet/cmd"

func main() {
	cmd.Execute()
}
