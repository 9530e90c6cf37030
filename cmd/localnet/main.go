package main

import (
	"github.com/onflow/localnet/cmd/localnet/cmd"
)

func main() {
	cmd.Execute()
}
