package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

type cliRun struct {
	t       *testing.T
	keyFile string
}

func newCLIRun(t *testing.T) *cliRun {
	t.Helper()
	return &cliRun{t: t, keyFile: filepath.Join(t.TempDir(), "key.json")}
}

// run executes the app and returns stdout plus the exit code requested via
// cli.Exit (0 when none).
func (r *cliRun) run(args ...string) (string, int, error) {
	r.t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &bytes.Buffer{}

	code := 0
	prev := cli.OsExiter
	cli.OsExiter = func(c int) { code = c }
	defer func() { cli.OsExiter = prev }()

	err := app.Run(append([]string{"attestor", "--key-file", r.keyFile}, args...))
	return out.String(), code, err
}

func TestIssueVerifyDecode(t *testing.T) {
	r := newCLIRun(t)

	out, _, err := r.run("keygen")
	require.NoError(t, err)
	assert.Contains(t, out, `"keys"`)
	assert.FileExists(t, r.keyFile)

	_, _, err = r.run("keygen")
	require.Error(t, err, "an existing key is not overwritten without --force")

	qr := filepath.Join(t.TempDir(), "qr.png")
	out, _, err = r.run("issue", "-c", "name=John Smith", "-c", "dob=1990-01-15", "--qr", qr)
	require.NoError(t, err)
	payload := strings.TrimSpace(out)
	require.NotEmpty(t, payload)

	png, err := os.ReadFile(qr)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	t.Run("decode prints the credential", func(t *testing.T) {
		out, _, err := r.run("decode", payload)
		require.NoError(t, err)
		var doc map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &doc))
		subject, ok := doc["credentialSubject"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "John Smith", subject["givenName"])
		assert.Equal(t, "1990-01-15", subject["birthDate"])
	})

	t.Run("verify against the key file", func(t *testing.T) {
		out, code, err := r.run("verify", "--trust-key-file", payload)
		require.NoError(t, err)
		assert.Equal(t, 0, code)
		assert.Contains(t, out, `"status": "valid"`)
	})

	t.Run("garbage exits non-zero", func(t *testing.T) {
		out, code, _ := r.run("verify", "not-a-payload")
		assert.Equal(t, 2, code)
		assert.Contains(t, out, `"status": "malformed"`)
	})
}

func TestIssueRejectsBadClaims(t *testing.T) {
	r := newCLIRun(t)
	_, _, err := r.run("keygen")
	require.NoError(t, err)

	_, _, err = r.run("issue", "-c", "favourite_colour=blue")
	assert.Error(t, err)

	_, _, err = r.run("issue", "-c", "no-equals-sign")
	assert.Error(t, err)

	_, _, err = r.run("issue")
	assert.Error(t, err)
}
