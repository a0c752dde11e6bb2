package main

import (
	"os"

	"github.com/wyfcoding/insurancefundamentals/cmd/fundamentals/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
