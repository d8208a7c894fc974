package cmd

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aitsambajwa-iss/Checkoutly/internal/audit"
	"github.com/aitsambajwa-iss/Checkoutly/internal/config"
)

func TestAuditCmd_HasSubcommands(t *testing.T) {
	registered := make(map[string]bool)
	for _, cmd := range auditCmd.Commands() {
		registered[cmd.Name()] = true
	}
	for _, name := range []string{"list", "verify"} {
		assert.True(t, registered[name], "audit subcommand %q should be registered", name)
	}
}

func TestAuditVerifyCmd_RequiresOneArg(t *testing.T) {
	require.NotNil(t, auditVerifyCmd.Args)
	assert.Error(t, auditVerifyCmd.Args(auditVerifyCmd, []string{}))
	assert.NoError(t, auditVerifyCmd.Args(auditVerifyCmd, []string{"rec_123"}))
}

func TestAuditListCmd_Flags(t *testing.T) {
	for _, name := range []string{"chat", "limit"} {
		assert.NotNil(t, auditListCmd.Flags().Lookup(name), "audit list flag %q should be registered", name)
	}
	flag := auditListCmd.Flags().Lookup("limit")
	require.NotNil(t, flag)
	assert.Equal(t, "20", flag.DefValue)
}

// seedAudit writes one record through the same store the CLI opens.
func seedAudit(t *testing.T, chatID string) audit.Record {
	t.Helper()
	cfg, err := config.Load()
	require.NoError(t, err)
	store, err := audit.NewSQLiteStore(cfg.AuditDBPath(), cfg.AuditSigningKey, cfg.AuditSealKey)
	require.NoError(t, err)
	defer store.Close()

	r := audit.Record{
		ID:               "rec_" + chatID,
		TurnID:           "turn_1",
		ChatID:           chatID,
		Role:             "user",
		OriginalContent:  "my card is 4111 1111 1111 1111",
		SanitizedContent: "[CARD:tok_00000000000000aa]",
		TokensApplied:    []string{"card"},
		Timestamp:        time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Write(context.Background(), r))
	return r
}

func TestAuditList_EndToEnd(t *testing.T) {
	isolate(t)

	out, err := execute(t, "audit", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No audit records found.")

	seedAudit(t, "chat_a")
	seedAudit(t, "chat_b")

	out, err = execute(t, "audit", "list", "--chat", "chat_b")
	require.NoError(t, err)
	assert.Contains(t, out, "showing 1")
	assert.Contains(t, out, "rec_chat_b")
	assert.NotContains(t, out, "rec_chat_a")
	assert.NotContains(t, out, "4111", "original content stays sealed")
}

func TestAuditVerify_EndToEnd(t *testing.T) {
	isolate(t)
	r := seedAudit(t, "chat_v")

	out, err := execute(t, "audit", "verify", r.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "VALID")

	_, err = execute(t, "audit", "verify", "rec_missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no audit record")
}

func TestRenderAuditList(t *testing.T) {
	var buf bytes.Buffer
	ts := time.Date(2026, 2, 18, 10, 0, 0, 0, time.UTC)
	renderAuditList(&buf, []audit.Record{
		{ID: "rec_1", Timestamp: ts, ChatID: "chat_1", TokensApplied: []string{"card"}, SanitizedContent: "[CARD:tok_1]"},
		{ID: "rec_2", Timestamp: ts, ChatID: "chat_2", TokensApplied: []string{"phone", "email"}, SanitizedContent: "call [PHONE:tok_2]"},
	})
	out := buf.String()
	assert.Contains(t, out, "Audit Records (showing 2)")
	assert.Contains(t, out, "rec_1")
	assert.Contains(t, out, "2026-02-18 10:00:00")
	assert.Contains(t, out, "phone,email")
}

func TestRenderVerifyResult(t *testing.T) {
	var bufValid, bufInvalid bytes.Buffer
	renderVerifyResult(&bufValid, "rec_abc", true)
	renderVerifyResult(&bufInvalid, "rec_xyz", false)
	assert.Contains(t, bufValid.String(), "VALID")
	assert.Contains(t, bufValid.String(), "rec_abc")
	assert.Contains(t, bufInvalid.String(), "INVALID")
	assert.Contains(t, bufInvalid.String(), "rec_xyz")
}
