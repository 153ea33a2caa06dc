package main

import (
	"os"

	"github.com/JakeFAU/docs-crawler/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
