package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/veilmarket/internal/sqlite"
	"github.com/mesh-intelligence/veilmarket/pkg/types"
)

// workspace is an initialized, seeded config directory.
type workspace struct {
	configDir string
	listings  []string
}

type runResult struct {
	code   int
	stdout string
	stderr string
}

func (w workspace) run(t *testing.T, args ...string) runResult {
	t.Helper()
	var out, errOut bytes.Buffer
	code := Run(append([]string{"--config-dir", w.configDir}, args...), &out, &errOut)
	return runResult{code: code, stdout: out.String(), stderr: errOut.String()}
}

// runJSON runs a --json command that must succeed and decodes its output.
func (w workspace) runJSON(t *testing.T, v any, args ...string) {
	t.Helper()
	res := w.run(t, append([]string{"--json"}, args...)...)
	require.Equal(t, exitSuccess, res.code, "stderr: %s", res.stderr)
	require.NoError(t, json.Unmarshal([]byte(res.stdout), v), "stdout: %s", res.stdout)
}

func newWorkspace(t *testing.T) workspace {
	t.Helper()
	for _, env := range []string{"VEILMARKET_USER", "VEILMARKET_LOG_LEVEL", "VEILMARKET_OFFER_TTL", "VEILMARKET_DATA_DIR"} {
		t.Setenv(env, "")
	}
	w := workspace{configDir: filepath.Join(t.TempDir(), ".veilmarket")}

	var initRes initResult
	w.runJSON(t, &initRes, "init")
	assert.True(t, initRes.ConfigWritten)
	assert.Equal(t, filepath.Join(w.configDir, defaultDataDirName), initRes.DataDir)

	var seed sqlite.SeedResult
	w.runJSON(t, &seed, "seed")
	require.False(t, seed.Skipped)
	w.listings = seed.ListingIDs
	return w
}

func TestVersionNeedsNoWorkspace(t *testing.T) {
	var out, errOut bytes.Buffer
	code := Run([]string{"version"}, &out, &errOut)
	assert.Equal(t, exitSuccess, code)
	assert.Contains(t, out.String(), "veilmarket v"+Version)
}

func TestInitIsIdempotent(t *testing.T) {
	w := newWorkspace(t)
	_, err := os.Stat(filepath.Join(w.configDir, "config.yaml"))
	require.NoError(t, err)

	var again initResult
	w.runJSON(t, &again, "init")
	assert.False(t, again.ConfigWritten)

	var seed sqlite.SeedResult
	w.runJSON(t, &seed, "seed")
	assert.True(t, seed.Skipped, "a second seed leaves data alone")
}

func TestNegotiationThroughTheCLI(t *testing.T) {
	w := newWorkspace(t)
	listing := w.listings[0]

	var browse []struct {
		ListingID string `json:"listing_id"`
	}
	w.runJSON(t, &browse, "listing", "browse", "--as", sqlite.SeedUserBob)
	require.NotEmpty(t, browse)

	var created types.Offer
	w.runJSON(t, &created, "offer", "create", listing, "--as", sqlite.SeedUserBob,
		"--price", "1200", "--message", "call +1 415 555 0199", "--submit")
	assert.Equal(t, types.OfferOpen, created.State)
	require.NotNil(t, created.ExpiresAt, "offer_ttl applies to submitted offers")

	var before struct {
		Counterparty struct {
			Identity *struct{} `json:"identity"`
		} `json:"counterparty"`
		Ledger []types.Offer `json:"ledger"`
	}
	w.runJSON(t, &before, "thread", "show", created.ThreadID, "--as", sqlite.SeedUserCarol)
	assert.Nil(t, before.Counterparty.Identity)
	require.Len(t, before.Ledger, 1)
	assert.NotContains(t, before.Ledger[0].Message, "555")

	var accepted resultView
	w.runJSON(t, &accepted, "offer", "accept", created.OfferID, "--as", sqlite.SeedUserCarol)
	assert.True(t, accepted.Accepted)
	assert.Equal(t, types.OfferAccepted, accepted.Offer.State)

	var after struct {
		Counterparty struct {
			Identity *struct {
				LegalName string `json:"legal_name"`
			} `json:"identity"`
		} `json:"counterparty"`
	}
	w.runJSON(t, &after, "thread", "show", created.ThreadID, "--as", sqlite.SeedUserCarol)
	require.NotNil(t, after.Counterparty.Identity)
	assert.NotEmpty(t, after.Counterparty.Identity.LegalName)

	var inbox []types.Notification
	w.runJSON(t, &inbox, "notifications", "list", "--as", sqlite.SeedUserBob)
	var kinds []types.NotificationType
	for _, n := range inbox {
		kinds = append(kinds, n.Type)
	}
	assert.Contains(t, kinds, types.NotifyOfferAccepted)
	assert.Contains(t, kinds, types.NotifyIdentityRevealed)

	res := w.run(t, "offer", "accept", created.OfferID, "--as", sqlite.SeedUserCarol)
	assert.Equal(t, exitUserError, res.code, "a concluded thread is a conflict")
	assert.Contains(t, res.stderr, "Error:")
}

func TestThreadExportRoundTrip(t *testing.T) {
	w := newWorkspace(t)
	var created types.Offer
	w.runJSON(t, &created, "offer", "create", w.listings[0], "--as", sqlite.SeedUserBob, "--price", "10")

	var exported map[string]string
	w.runJSON(t, &exported, "thread", "export", created.ThreadID, "--as", sqlite.SeedUserBob)
	assert.Equal(t, filepath.Join(w.configDir, defaultDataDirName, "exports"), filepath.Dir(exported["path"]))

	res := w.run(t, "thread", "inspect", exported["path"])
	require.Equal(t, exitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, created.ThreadID)
	assert.Contains(t, res.stdout, string(types.OfferDraft))

	w.runJSON(t, &exported, "thread", "export", created.ThreadID, "--as", sqlite.SeedUserCarol)
	snap, err := sqlite.ReadThreadExport(exported["path"])
	require.NoError(t, err)
	assert.Empty(t, snap.Ledger, "the seller's export omits the buyer's draft")

	res = w.run(t, "thread", "export", created.ThreadID, "--as", "user-ghost")
	assert.Equal(t, exitUserError, res.code)
}

func TestSweepReportsDueOffers(t *testing.T) {
	w := newWorkspace(t)
	var report struct {
		Due int `json:"due"`
	}
	w.runJSON(t, &report, "sweep")
	assert.Equal(t, 0, report.Due)
}

func TestMissingActingUser(t *testing.T) {
	w := newWorkspace(t)
	res := w.run(t, "notifications", "list")
	assert.Equal(t, exitUserError, res.code)
	assert.Contains(t, res.stderr, "--as")

	// Browsing works anonymously.
	res = w.run(t, "listing", "browse")
	assert.Equal(t, exitSuccess, res.code, res.stderr)
}

func TestUnknownFlagIsAUserError(t *testing.T) {
	w := newWorkspace(t)
	res := w.run(t, "listing", "browse", "--no-such-flag")
	assert.Equal(t, exitUserError, res.code)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitUserError, exitCode(types.ErrConflict))
	assert.Equal(t, exitUserError, exitCode(types.Wrap(types.CodeForbidden, "no", nil)))
	assert.Equal(t, exitUserError, exitCode(usageError{errors.New("bad flag")}))
	assert.Equal(t, exitSysError, exitCode(errors.New("disk full")))
}
