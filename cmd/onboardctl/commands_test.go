package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devintruefi/91825truefi-sub000/internal/backend"
	"github.com/devintruefi/91825truefi-sub000/internal/log"
	"github.com/devintruefi/91825truefi-sub000/internal/onboarding"
	"github.com/devintruefi/91825truefi-sub000/internal/services"
	"github.com/devintruefi/91825truefi-sub000/internal/store/memory"
)

func newTestApp(t *testing.T, st *memory.Store) (*app, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	return &app{
		out:    out,
		logger: log.Discard(),
		openStore: func(context.Context) (backend.Store, func() error, error) {
			return st, nil, nil
		},
		dbPath: filepath.Join(t.TempDir(), "onboarding.db"),
	}, out
}

func run(t *testing.T, a *app, args ...string) error {
	t.Helper()
	cmd := newRootCmd(a)
	cmd.SetArgs(args)
	cmd.SetOut(a.out)
	cmd.SetErr(&bytes.Buffer{})
	return cmd.ExecuteContext(context.Background())
}

// seed starts a session and answers the first step through the service.
func seed(t *testing.T, st *memory.Store, userID, sessionID string) {
	t.Helper()
	svc := services.NewOnboardingService(onboarding.NewMachine(onboarding.DefaultCatalog()), st,
		services.WithAnswerLog(st))
	v, err := svc.Current(context.Background(), userID, sessionID)
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), services.SubmitRequest{
		UserID:     userID,
		SessionID:  sessionID,
		StepID:     string(v.CurrentStep),
		InstanceID: v.StepInstance.InstanceID,
		Nonce:      v.StepInstance.Nonce,
		Payload:    json.RawMessage(`{"accepted":true}`),
	})
	require.NoError(t, err)
}

func TestCatalogCmd(t *testing.T) {
	a, out := newTestApp(t, memory.New())

	require.NoError(t, run(t, a, "catalog"))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Len(t, lines, 21)
	assert.Contains(t, lines[1], "privacy_consent")
	assert.Contains(t, lines[20], "wrap_up")
}

func TestCatalogCmd_JSON(t *testing.T) {
	a, out := newTestApp(t, memory.New())

	require.NoError(t, run(t, a, "catalog", "--json"))

	var entries []services.CatalogEntry
	require.NoError(t, json.Unmarshal(out.Bytes(), &entries))
	assert.Len(t, entries, 20)
}

func TestStateCmd(t *testing.T) {
	st := memory.New()
	seed(t, st, "alice", "default")
	a, out := newTestApp(t, st)

	require.NoError(t, run(t, a, "state", "--user", "alice"))

	assert.Contains(t, out.String(), "welcome")
	assert.Contains(t, out.String(), "privacy_consent")
	assert.Contains(t, out.String(), "1 collected")
}

func TestStateCmd_Missing(t *testing.T) {
	a, _ := newTestApp(t, memory.New())

	err := run(t, a, "state", "-u", "bob", "-s", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no session")
}

func TestStateCmd_RequiresUser(t *testing.T) {
	a, _ := newTestApp(t, memory.New())

	assert.Error(t, run(t, a, "state"))
}

func TestSessionsAndAnswersCmd(t *testing.T) {
	st := memory.New()
	seed(t, st, "alice", "a")
	seed(t, st, "alice", "b")
	a, out := newTestApp(t, st)

	require.NoError(t, run(t, a, "sessions", "-u", "alice"))
	assert.Equal(t, "a\nb\n", out.String())

	out.Reset()
	require.NoError(t, run(t, a, "answers", "-u", "alice", "-s", "a"))
	assert.Contains(t, out.String(), "privacy_consent")
	assert.Contains(t, out.String(), `{"accepted":true}`)
}

func TestResetCmd(t *testing.T) {
	st := memory.New()
	seed(t, st, "alice", "default")
	a, out := newTestApp(t, st)

	require.NoError(t, run(t, a, "reset", "-u", "alice"))
	assert.Contains(t, out.String(), "reset session")

	_, err := st.Load(context.Background(), "alice", "default")
	assert.Error(t, err)
}

func TestMigrateAndStatsCmd(t *testing.T) {
	a, out := newTestApp(t, memory.New())

	require.NoError(t, run(t, a, "migrate", "up"))
	assert.Contains(t, out.String(), "schema version 1")

	out.Reset()
	require.NoError(t, run(t, a, "migrate", "down"))
	assert.Contains(t, out.String(), "schema version 0")

	out.Reset()
	require.NoError(t, run(t, a, "stats"))
	assert.Equal(t, "STEP  SESSIONS\n", out.String())

	assert.Error(t, run(t, a, "migrate", "down", "zero"))
}
