package main

import (
	"context"
	"fmt"
	"os"

	"jewelfinder-go/internal/bootstrap"
)

func main() {
	app, err := bootstrap.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup failed: %v\n", err)
		os.Exit(1)
	}
	if err := app.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "gateway exited: %v\n", err)
		os.Exit(1)
	}
}
