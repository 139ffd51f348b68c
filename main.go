package main

import (
	"os"

	"github.com/numtide/precisefmt/cmd"
)

func main() {
	root, _ := cmd.NewRoot()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
