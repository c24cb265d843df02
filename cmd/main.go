package main

import (
	"os"

	"github.com/soundprediction/go-lineage/cmd/lineage"
)

func main() {
	if err := lineage.Execute(); err != nil {
		os.Exit(1)
	}
}
