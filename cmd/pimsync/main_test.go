package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/MKhiriev/go-pim-sync/internal/app"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const contact = "BEGIN:VCARD\r\nVERSION:3.0\r\nUID:jane\r\nFN:Jane Doe\r\nEND:VCARD\r\n"

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeConfig(t *testing.T) (cfgPath, dirB string) {
	t.Helper()
	root := t.TempDir()
	dirA := filepath.Join(root, "a")
	dirB = filepath.Join(root, "b")
	require.NoError(t, os.MkdirAll(dirA, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dirA, "jane.vcf"), []byte(contact), 0o600))

	cfgPath = filepath.Join(root, "pimsync.yaml")
	content := "storage:\n" +
		"  status:\n" +
		"    dsn: " + filepath.Join(root, "status.db") + "\n" +
		"pairs:\n" +
		"  - name: contacts\n" +
		"    a:\n" +
		"      type: filesystem\n" +
		"      path: " + dirA + "\n" +
		"      extension: .vcf\n" +
		"    b:\n" +
		"      type: filesystem\n" +
		"      path: " + dirB + "\n" +
		"      extension: .vcf\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o600))
	return cfgPath, dirB
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Build version: N/A")
	assert.Contains(t, out, "Build commit: N/A")
}

func TestSyncCommand(t *testing.T) {
	cfgPath, dirB := writeConfig(t)

	out, err := execute(t, "sync", "-c", cfgPath, "--pair", "contacts")
	require.NoError(t, err)

	var result app.SyncResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "contacts", result.Pair)
	require.NotNil(t, result.Summary)
	assert.Equal(t, 1, result.Summary.CreatedB)

	copied, err := os.ReadFile(filepath.Join(dirB, "jane.vcf"))
	require.NoError(t, err)
	assert.Equal(t, contact, string(copied))

	out, err = execute(t, "status", "-c", cfgPath)
	require.NoError(t, err)
	var statuses []app.StatusResult
	require.NoError(t, json.Unmarshal([]byte(out), &statuses))
	require.Len(t, statuses, 1)
	require.NotNil(t, statuses[0].LastRun)
	assert.Equal(t, result.Summary.RunID, statuses[0].LastRun.RunID)
}

func TestSyncCommand_UnknownPair(t *testing.T) {
	cfgPath, _ := writeConfig(t)

	_, err := execute(t, "sync", "-c", cfgPath, "--pair", "calendar")
	assert.Error(t, err)
}

func TestDiscoverCommand_RequiresURL(t *testing.T) {
	_, err := execute(t, "discover", "--type", "carddav")
	assert.Error(t, err)
}
