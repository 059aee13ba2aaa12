package main

import (
	"github.com/depshift/depshift/cmd"
)

func main() {
	cmd.Execute()
}
