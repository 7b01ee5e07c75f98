package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/cadrianmae/gencast/internal/logger"
)

func main() {
	cmd := newRootCommand()
	err := cmd.Execute()
	logger.Sync()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
