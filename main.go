package main

import (
	"os"

	"rul-pipeline/internal/app"
)

func main() {
	if err := app.Execute(); err != nil {
		os.Exit(1)
	}
}
