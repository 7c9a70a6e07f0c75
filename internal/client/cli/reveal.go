package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/voidnote/voidnote/internal/common"
	"github.com/voidnote/voidnote/internal/cryptox"
)

// Reveal consumes one view and decrypts the payload on this device.
// The decryption key comes from the link fragment or, for
// passphrase-protected secrets, from the passphrase and the returned
// derivation salt. A wrong passphrase, like a wrong key, fails
// opaquely; the view is spent either way.
func (a *App) Reveal(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reveal", flag.ContinueOnError)
	outPath := fs.String("out", "", "write a file payload to this path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: voidnote reveal [flags] <share link>")
	}

	shortID, exportedKey, err := ParseLink(fs.Arg(0))
	if err != nil {
		return err
	}

	res, err := a.client.Reveal(ctx, shortID)
	if err != nil {
		if errors.Is(err, common.ErrSecretNotAvailable) {
			return fmt.Errorf("this secret is not available: it may never have existed, or it has been viewed, burned or expired")
		}
		return err
	}

	key, err := a.resolveKey(exportedKey, res.HasPassphrase, res.KeyDerivationSalt)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(key)

	if len(res.Ciphertext) > 0 {
		plaintext, err := cryptox.Decrypt(res.Ciphertext, res.ContentNonce, key)
		if err != nil {
			return fmt.Errorf("decryption failed: wrong key or corrupted data")
		}
		fmt.Fprintln(a.out, string(plaintext))
	}

	if res.FileURL != "" {
		if err := a.downloadFile(ctx, res.FileURL, res.FileName, res.FileNonce, key, *outPath); err != nil {
			return err
		}
	}

	if res.ViewsRemaining == 0 {
		fmt.Fprintln(a.out, "This was the last view; the secret is now destroyed.")
	} else if res.ViewsRemaining > 0 {
		fmt.Fprintf(a.out, "Views remaining: %d\n", res.ViewsRemaining)
	}
	return nil
}

func (a *App) resolveKey(exportedKey string, hasPassphrase bool, salt []byte) ([]byte, error) {
	if hasPassphrase {
		pass, err := GetPassphrase("Enter passphrase", a.out)
		if err != nil {
			return nil, err
		}
		defer common.WipeByteArray(pass)
		return cryptox.DeriveKey(pass, salt), nil
	}

	if exportedKey == "" {
		return nil, fmt.Errorf("share link carries no key")
	}
	return cryptox.ImportKey(exportedKey)
}

func (a *App) downloadFile(ctx context.Context, url, name string, nonce, key []byte, outPath string) error {
	ciphertext, err := a.client.DownloadBlob(ctx, url)
	if err != nil {
		return err
	}

	plaintext, err := cryptox.Decrypt(ciphertext, nonce, key)
	if err != nil {
		return fmt.Errorf("file decryption failed: wrong key or corrupted data")
	}

	if outPath == "" {
		outPath = name
	}
	if outPath == "" {
		outPath = "secret-" + time.Now().Format("20060102-150405")
	}
	if err := os.WriteFile(outPath, plaintext, 0o600); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "File written to %s\n", outPath)
	return nil
}
