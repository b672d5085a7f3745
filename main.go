package main

import (
	"os"

	"github.com/chosahoo/cafe24-cs-bot/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
