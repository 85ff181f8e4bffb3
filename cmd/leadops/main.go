package main

import (
	"os"

	"github.com/SFZPL/lead-automation-system-sub000/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
