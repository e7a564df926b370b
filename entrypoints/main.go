package main

import (
	"github.com/ragdocs/docchat/cmd"
)

func main() {
	cmd.Execute()
}
