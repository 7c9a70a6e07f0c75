package cli

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voidnote/voidnote/internal/logging"
	"github.com/voidnote/voidnote/internal/server/blob"
	sc "github.com/voidnote/voidnote/internal/server/config"
	"github.com/voidnote/voidnote/internal/server/httpapi"
	"github.com/voidnote/voidnote/internal/server/lifecycle"
	"github.com/voidnote/voidnote/internal/server/repositories/accesslogs"
	"github.com/voidnote/voidnote/internal/server/repositories/secrets"
	"github.com/voidnote/voidnote/internal/server/services"
)

func testApp(t *testing.T, stdin string) (*App, *bytes.Buffer) {
	t.Helper()

	cfg := &sc.Config{}
	cfg.LoadDefaults()
	cfg.StoreBackend = sc.BackendMemory

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	repo := secrets.NewMemoryRepository()
	rec := accesslogs.NewMemoryRecorder()
	lc := lifecycle.NewService(repo, rec, logger)
	svc := services.NewSecretService(repo, rec, lc, blob.NewMemoryStore(), cfg, logger)

	srv := httptest.NewServer(httpapi.NewRouter(svc, cfg, logger))
	t.Cleanup(srv.Close)

	var out bytes.Buffer
	app := NewApp(srv.URL)
	app.reader = bufio.NewReader(strings.NewReader(stdin))
	app.out = &out
	return app, &out
}

var linkRe = regexp.MustCompile(`Share link: (\S+)`)
var tokenRe = regexp.MustCompile(`needed for burn/log\):\n(\S+)`)
var idRe = regexp.MustCompile(`Secret id:  (\S+)`)

func TestCreateThenReveal(t *testing.T) {
	ctx := context.Background()
	app, out := testApp(t, "the launch code is 0000\n\n")

	require.NoError(t, app.Run(ctx, []string{"create", "-views", "2"}))

	m := linkRe.FindStringSubmatch(out.String())
	require.NotNil(t, m, "no share link in output")
	link := m[1]
	assert.Contains(t, link, "#")

	out.Reset()
	require.NoError(t, app.Run(ctx, []string{"reveal", link}))
	assert.Contains(t, out.String(), "the launch code is 0000")
	assert.Contains(t, out.String(), "Views remaining: 1")
}

func TestRevealLastViewDestroys(t *testing.T) {
	ctx := context.Background()
	app, out := testApp(t, "one shot\n\n")

	require.NoError(t, app.Run(ctx, []string{"create"}))
	link := linkRe.FindStringSubmatch(out.String())[1]

	out.Reset()
	require.NoError(t, app.Run(ctx, []string{"reveal", link}))
	assert.Contains(t, out.String(), "now destroyed")

	err := app.Run(ctx, []string{"reveal", link})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not available")
}

func TestCreateWithPassphrase(t *testing.T) {
	orig := readPassword
	readPassword = func(fd int) ([]byte, error) {
		return []byte("hunter2hunter2"), nil
	}
	defer func() { readPassword = orig }()

	ctx := context.Background()
	app, out := testApp(t, "guarded text\n\n")

	require.NoError(t, app.Run(ctx, []string{"create", "-passphrase"}))

	link := linkRe.FindStringSubmatch(out.String())[1]
	// passphrase-protected links carry no key fragment
	assert.NotContains(t, link, "#")

	out.Reset()
	require.NoError(t, app.Run(ctx, []string{"reveal", link}))
	assert.Contains(t, out.String(), "guarded text")
}

func TestRevealWrongPassphraseFailsOpaquely(t *testing.T) {
	pass := []byte("correct horse")
	orig := readPassword
	readPassword = func(fd int) ([]byte, error) {
		return append([]byte(nil), pass...), nil
	}
	defer func() { readPassword = orig }()

	ctx := context.Background()
	app, out := testApp(t, "guarded\n\n")
	require.NoError(t, app.Run(ctx, []string{"create", "-passphrase", "-views", "5"}))
	link := linkRe.FindStringSubmatch(out.String())[1]

	pass = []byte("battery staple")
	err := app.Run(ctx, []string{"reveal", link})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decryption failed")
	assert.NotContains(t, err.Error(), "passphrase")
}

func TestBurnCommand(t *testing.T) {
	ctx := context.Background()
	app, out := testApp(t, "to burn\n\n")

	require.NoError(t, app.Run(ctx, []string{"create", "-views", "5"}))
	output := out.String()
	link := linkRe.FindStringSubmatch(output)[1]
	token := tokenRe.FindStringSubmatch(output)[1]
	id := idRe.FindStringSubmatch(output)[1]

	err := app.Run(ctx, []string{"burn", "-token", "bogus", id})
	require.Error(t, err)

	out.Reset()
	require.NoError(t, app.Run(ctx, []string{"burn", "-token", token, id}))
	assert.Contains(t, out.String(), "Secret burned")

	err = app.Run(ctx, []string{"reveal", link})
	require.Error(t, err)
}

func TestStatusCommand(t *testing.T) {
	ctx := context.Background()
	app, out := testApp(t, "status me\n\n")

	require.NoError(t, app.Run(ctx, []string{"create"}))
	link := linkRe.FindStringSubmatch(out.String())[1]

	out.Reset()
	require.NoError(t, app.Run(ctx, []string{"status", link}))
	assert.Contains(t, out.String(), "Available")

	out.Reset()
	require.NoError(t, app.Run(ctx, []string{"reveal", link}))

	out.Reset()
	require.NoError(t, app.Run(ctx, []string{"status", link}))
	assert.Contains(t, out.String(), "Not available")
}

func TestLogCommand(t *testing.T) {
	ctx := context.Background()
	app, out := testApp(t, "audited\n\n")

	require.NoError(t, app.Run(ctx, []string{"create"}))
	output := out.String()
	link := linkRe.FindStringSubmatch(output)[1]
	token := tokenRe.FindStringSubmatch(output)[1]
	id := idRe.FindStringSubmatch(output)[1]

	require.NoError(t, app.Run(ctx, []string{"reveal", link}))

	out.Reset()
	require.NoError(t, app.Run(ctx, []string{"log", "-token", token, id}))
	assert.Contains(t, out.String(), "attempt")
	assert.Contains(t, out.String(), "success")
	assert.Contains(t, out.String(), "burn")
}

func TestUnknownCommand(t *testing.T) {
	app, _ := testApp(t, "")
	err := app.Run(context.Background(), []string{"frobnicate"})
	require.Error(t, err)
}
