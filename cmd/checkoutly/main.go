package main

import (
	"os"

	"github.com/aitsambajwa-iss/Checkoutly/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
