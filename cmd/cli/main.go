package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/voidnote/voidnote/internal/client/cli"
)

func main() {
	server := flag.String("s", "http://localhost:8080", "server address")
	flag.Parse()

	app := cli.NewApp(*server)
	if err := app.Run(context.Background(), flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
