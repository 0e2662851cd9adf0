package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"grantlens/internal/cli"
	"grantlens/internal/errors"
)

func main() {
	// A missing .env file is fine; environment variables still apply
	_ = godotenv.Load()

	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error [%s]: %v\n", errors.Classify(err), err)
		os.Exit(1)
	}
}
