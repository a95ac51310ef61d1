package main

import (
	"os"

	"github.com/meandmytram/pybind-example/cmd/calculator/cmd"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	return cmd.Execute(args)
}
