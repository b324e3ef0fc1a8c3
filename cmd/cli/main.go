package main

import (
	"github.com/mchmarny/cipherbench/pkg/cli"
)

func main() {
	cli.Execute()
}
