package cli

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/UNCWMixedReality/NounExtractor/internal/config"
)

// isolateEnv blanks the NOUN_CACHE_* variables so the host environment
// cannot redirect a test to a real database.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		config.EnvBackend, config.EnvPath, config.EnvSQLiteDriver, config.EnvHost,
		config.EnvPort, config.EnvDBName, config.EnvUser, config.EnvPassword,
		config.EnvSSLMode, config.EnvConnectTimeout, config.EnvLogLevel, config.EnvLogFormat,
	} {
		t.Setenv(key, "")
	}
}

// cliRun is one CLI invocation against a test database.
type cliRun struct {
	stdout string
	stderr string
	err    error
}

// cliEnv runs commands against one embedded database in a temp dir.
type cliEnv struct {
	t      *testing.T
	dbPath string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	isolateEnv(t)
	return &cliEnv{t: t, dbPath: filepath.Join(t.TempDir(), "cache.db")}
}

func (e *cliEnv) run(stdin string, args ...string) cliRun {
	e.t.Helper()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}

	cmd := NewRootCommand()
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(append([]string{"--path", e.dbPath}, args...))

	err := cmd.Execute()
	return cliRun{stdout: out.String(), stderr: errOut.String(), err: err}
}
