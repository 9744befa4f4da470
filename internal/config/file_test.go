package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFile_Formats(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "json",
			file: "pimsync.json",
			content: `{
  "storage": {"status": {"dsn": "status.db"}},
  "sync": {"batch_size": 4, "interval": "2m", "watch": true},
  "pairs": [{
    "name": "contacts",
    "conflict_policy": "prefer_b",
    "a": {"type": "filesystem", "path": "/data/contacts", "extension": ".vcf"},
    "b": {"type": "carddav", "url": "https://dav.example.com/book/", "request_timeout": "15s", "read_only": true}
  }]
}`,
		},
		{
			name: "yaml",
			file: "pimsync.yml",
			content: `
storage:
  status:
    dsn: status.db
sync:
  batch_size: 4
  interval: 2m
  watch: true
pairs:
  - name: contacts
    conflict_policy: prefer_b
    a:
      type: filesystem
      path: /data/contacts
      extension: .vcf
    b:
      type: carddav
      url: https://dav.example.com/book/
      request_timeout: 15s
      read_only: true
`,
		},
		{
			name: "toml",
			file: "pimsync.toml",
			content: `
[storage.status]
dsn = "status.db"

[sync]
batch_size = 4
interval = "2m"
watch = true

[[pairs]]
name = "contacts"
conflict_policy = "prefer_b"

[pairs.a]
type = "filesystem"
path = "/data/contacts"
extension = ".vcf"

[pairs.b]
type = "carddav"
url = "https://dav.example.com/book/"
request_timeout = "15s"
read_only = true
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := parseFile(writeTempConfig(t, tt.file, tt.content))
			require.NoError(t, err)

			assert.Equal(t, "status.db", cfg.Storage.Status.DSN)
			assert.Equal(t, 4, cfg.Sync.BatchSize)
			assert.Equal(t, 2*time.Minute, cfg.Sync.Interval)
			assert.True(t, cfg.Sync.Watch)
			assert.Equal(t, []Pair{{
				Name:           "contacts",
				ConflictPolicy: PolicyPreferB,
				A:              StorageDefinition{Type: StorageFilesystem, Path: "/data/contacts", Extension: ".vcf"},
				B: StorageDefinition{
					Type:           StorageCardDAV,
					URL:            "https://dav.example.com/book/",
					RequestTimeout: 15 * time.Second,
					ReadOnly:       true,
				},
			}}, cfg.Pairs)
		})
	}
}

func TestParseFile_Errors(t *testing.T) {
	_, err := parseFile(writeTempConfig(t, "pimsync.ini", "dsn=x"))
	assert.ErrorIs(t, err, ErrInvalidConfigFile)

	_, err = parseFile(writeTempConfig(t, "broken.json", "{"))
	assert.ErrorIs(t, err, ErrInvalidConfigFile)

	_, err = parseFile(writeTempConfig(t, "unknown.json", `{"sync": {"threads": 3}}`))
	assert.ErrorIs(t, err, ErrInvalidConfigFile)

	_, err = parseFile(writeTempConfig(t, "bad.yaml", "sync:\n  interval: sometimes\n"))
	assert.ErrorIs(t, err, ErrInvalidConfigFile)
}

func TestDuration(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalJSON([]byte(`"1h30m"`)))
	assert.Equal(t, Duration(90*time.Minute), d)

	require.NoError(t, d.UnmarshalJSON([]byte(`1000`)))
	assert.Equal(t, Duration(time.Microsecond), d)

	require.NoError(t, d.UnmarshalText([]byte("45s")))
	assert.Equal(t, Duration(45*time.Second), d)

	assert.Error(t, d.UnmarshalJSON([]byte(`true`)))
	assert.Error(t, d.UnmarshalText([]byte("later")))

	out, err := Duration(time.Minute).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"1m0s"`, string(out))
}
