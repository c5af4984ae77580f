package main

import (
	"os"

	"tabgate/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
