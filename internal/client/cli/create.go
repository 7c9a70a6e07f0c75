package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/voidnote/voidnote/internal/common"
	"github.com/voidnote/voidnote/internal/cryptox"
	"github.com/voidnote/voidnote/internal/server/httpapi"
	"github.com/voidnote/voidnote/internal/timex"
)

// Create encrypts a text or file secret locally and registers the
// ciphertext with the server. With a passphrase the key is derived and
// never leaves the device in any form; without one, a random key is
// exported into the link fragment.
func (a *App) Create(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	filePath := fs.String("file", "", "path of a file to share instead of text")
	maxViews := fs.Int("views", 0, "view budget (-1 for unlimited, 0 for server default)")
	ttl := fs.String("ttl", "", "lifetime, e.g. 30m or 24h (empty for server default)")
	usePassphrase := fs.Bool("passphrase", false, "protect with a passphrase instead of a link key")
	domains := fs.String("domains", "", "comma-separated hostnames allowed to view")
	requireAuth := fs.Bool("require-auth", false, "viewers must be authenticated")
	if err := fs.Parse(args); err != nil {
		return err
	}

	req := httpapi.CreateRequest{
		MaxViews:       *maxViews,
		RequireAuth:    *requireAuth,
		AllowedDomains: splitList(*domains),
	}
	if *ttl != "" {
		d, err := time.ParseDuration(*ttl)
		if err != nil {
			return fmt.Errorf("invalid ttl: %w", err)
		}
		req.TTL = timex.Duration{Duration: d}
	}

	key, err := a.prepareKey(*usePassphrase, &req)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(key)

	if *filePath != "" {
		if err := a.attachFile(ctx, *filePath, key, &req); err != nil {
			return err
		}
	} else {
		text, err := GetMultiline(a.reader, "Enter the secret text", a.out)
		if err != nil {
			return err
		}
		if text == "" {
			return fmt.Errorf("nothing to share")
		}
		ciphertext, nonce, err := cryptox.Encrypt([]byte(text), key)
		if err != nil {
			return err
		}
		req.Ciphertext = ciphertext
		req.ContentNonce = nonce
	}

	res, err := a.client.CreateSecret(ctx, req)
	if err != nil {
		return err
	}

	exported := ""
	if !*usePassphrase {
		exported = cryptox.ExportKey(key)
	}

	fmt.Fprintf(a.out, "Share link: %s\n", BuildLink(a.client.BaseURL(), res.ShortID, exported))
	fmt.Fprintf(a.out, "Expires:    %s\n", res.ExpiresAt.Format(time.RFC3339))
	fmt.Fprintf(a.out, "Secret id:  %s\n", res.ID)
	fmt.Fprintf(a.out, "Owner token (keep private, needed for burn/log):\n%s\n", res.OwnerToken)
	return nil
}

// prepareKey produces the encryption key: random for link-key secrets,
// passphrase-derived otherwise. For passphrase secrets the derivation
// salt and the verification digest go into the request; the digest is
// independent of the salt and cannot decrypt anything.
func (a *App) prepareKey(usePassphrase bool, req *httpapi.CreateRequest) ([]byte, error) {
	if !usePassphrase {
		return cryptox.GenerateKey(), nil
	}

	pass, err := GetPassphrase("Enter passphrase", a.out)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(pass)

	digest := cryptox.HashPassphrase(pass)

	confirm, err := GetPassphrase("Confirm passphrase", a.out)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(confirm)

	if !cryptox.VerifyPassphrase(confirm, digest) {
		return nil, fmt.Errorf("passphrases do not match")
	}

	salt := cryptox.GenerateSalt()
	req.PassphraseHash = digest
	req.KeyDerivationSalt = salt
	return cryptox.DeriveKey(pass, salt), nil
}

// attachFile encrypts the file and uploads the ciphertext to blob
// storage via a presigned URL; only the reference and encrypted
// metadata go into the create request.
func (a *App) attachFile(ctx context.Context, path string, key []byte, req *httpapi.CreateRequest) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	ciphertext, nonce, err := cryptox.Encrypt(data, key)
	if err != nil {
		return err
	}

	up, err := a.client.PresignUpload(ctx)
	if err != nil {
		return err
	}
	if err := a.client.UploadBlob(ctx, up.URL, ciphertext); err != nil {
		return err
	}

	req.FileRef = up.Key
	req.FileNonce = nonce
	req.FileName = filepath.Base(path)
	req.FileType = "application/octet-stream"
	req.FileSize = int64(len(ciphertext))
	return nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
