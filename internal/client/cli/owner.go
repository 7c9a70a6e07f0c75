package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/voidnote/voidnote/internal/common"
)

// Burn destroys a secret ahead of schedule. Requires the owner token
// printed at creation.
func (a *App) Burn(ctx context.Context, args []string) error {
	id, token, err := ownerArgs("burn", args)
	if err != nil {
		return err
	}

	if err := a.client.Burn(ctx, id, token); err != nil {
		switch {
		case errors.Is(err, common.ErrUnauthorized):
			return fmt.Errorf("owner token rejected")
		case errors.Is(err, common.ErrSecretNotAvailable):
			return fmt.Errorf("secret not found")
		default:
			return err
		}
	}

	fmt.Fprintln(a.out, "Secret burned.")
	return nil
}

// Log prints the access trail of a secret the caller owns.
func (a *App) Log(ctx context.Context, args []string) error {
	id, token, err := ownerArgs("log", args)
	if err != nil {
		return err
	}

	entries, err := a.client.AccessLog(ctx, id, token)
	if err != nil {
		if errors.Is(err, common.ErrUnauthorized) {
			return fmt.Errorf("owner token rejected")
		}
		return err
	}

	if len(entries) == 0 {
		fmt.Fprintln(a.out, "No access recorded yet.")
		return nil
	}
	for _, e := range entries {
		line := fmt.Sprintf("%s  %-8s", e.AccessedAt.Format(time.RFC3339), e.Status)
		if e.ActorIP != "" {
			line += "  " + e.ActorIP
		}
		if e.ActorUserID != "" {
			line += "  user=" + e.ActorUserID
		}
		if e.Error != "" {
			line += "  (" + e.Error + ")"
		}
		fmt.Fprintln(a.out, line)
	}
	return nil
}

// Status checks availability without consuming a view.
func (a *App) Status(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: voidnote status <share link>")
	}

	shortID, _, err := ParseLink(args[0])
	if err != nil {
		return err
	}

	st, err := a.client.Status(ctx, shortID)
	if err != nil {
		return err
	}

	if !st.Available {
		fmt.Fprintln(a.out, "Not available.")
		return nil
	}
	fmt.Fprintf(a.out, "Available. Expires %s", st.ExpiresAt.Format(time.RFC3339))
	if st.ViewsRemaining > 0 {
		fmt.Fprintf(a.out, ", views remaining: %d", st.ViewsRemaining)
	}
	if st.HasPassphrase {
		fmt.Fprint(a.out, ", passphrase required")
	}
	fmt.Fprintln(a.out)
	return nil
}

func ownerArgs(cmd string, args []string) (id, token string, err error) {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	tokenFlag := fs.String("token", "", "owner token printed at creation")
	if err := fs.Parse(args); err != nil {
		return "", "", err
	}
	if fs.NArg() < 1 || *tokenFlag == "" {
		return "", "", fmt.Errorf("usage: voidnote %s -token <owner token> <secret id>", cmd)
	}
	return fs.Arg(0), *tokenFlag, nil
}
