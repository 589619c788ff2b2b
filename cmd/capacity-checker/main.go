package main

import (
	"os"

	"github.com/yungbote/capacity-checker/cmd/capacity-checker/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
