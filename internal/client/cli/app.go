// Package cli implements the sender and recipient command line. All
// encryption and decryption happens here, on the user's device; the
// server only ever receives ciphertext, nonces, salts and digests.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/voidnote/voidnote/internal/client/api"
)

const usage = `Usage: voidnote <command> [arguments]

Commands:
  create   encrypt a text or file secret and print a share link
  reveal   fetch a share link and decrypt it locally
  status   check availability of a share link without spending a view
  burn     destroy a secret you created (requires the owner token)
  log      show the access log of a secret you created
`

type App struct {
	client *api.Client
	reader *bufio.Reader
	out    io.Writer
}

func NewApp(serverAddr string) *App {
	return &App{
		client: api.NewClient(serverAddr),
		reader: bufio.NewReader(os.Stdin),
		out:    os.Stdout,
	}
}

// Run dispatches the subcommand. args are the command line after the
// program name and global flags.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(a.out, usage)
		return nil
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "create":
		return a.Create(ctx, rest)
	case "reveal":
		return a.Reveal(ctx, rest)
	case "status":
		return a.Status(ctx, rest)
	case "burn":
		return a.Burn(ctx, rest)
	case "log":
		return a.Log(ctx, rest)
	default:
		fmt.Fprint(a.out, usage)
		return fmt.Errorf("unknown command: %s", cmd)
	}
}
