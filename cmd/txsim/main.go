package main

import (
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	_ = godotenv.Overload(".env.local")

	os.Exit(run(rootCmd.Execute, os.Stderr))
}

func run(execute func() error, stderr io.Writer) int {
	if err := execute(); err != nil {
		fmt.Fprintf(stderr, "Error: %s\n", friendlySimErr(err.Error()))
		return 1
	}
	return 0
}
