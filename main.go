package main

import (
	"os"
	_ "time/tzdata"

	"github.com/siddu28/Erflog/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
