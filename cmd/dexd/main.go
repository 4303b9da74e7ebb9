package main

import (
	"os"

	"github.com/Iwinswap/iwinswap-amm-router/cmd/dexd/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
