package main

import (
	"fmt"
	"os"

	"github.com/m3rciful/storebot/internal/storebot"
)

func main() {
	if err := storebot.Main(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
