package main

import (
	"fmt"
	"os"
)

const VERSION = "0.3.0"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
