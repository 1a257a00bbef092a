package influx

import (
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitchen360/catalog/internal/config"
)

func TestActivityPoint(t *testing.T) {
	at := time.Unix(1700000000, 0)
	p := ActivityPoint("entity_created", map[string]any{
		"kind":  "storage_area",
		"id":    "a1",
		"count": 2,
		"zoom":  40.5,
		"tags":  []string{"x"},
	}, at)

	line := influxdb2_write.PointToLineProtocol(p, time.Second)
	assert.Equal(t,
		`catalog_activity,action=entity_created,kind=storage_area count=2i,id="a1",tags="[x]",zoom=40.5 1700000000`,
		strings.TrimSpace(line))
}

func TestActivityPoint_OnlyTags(t *testing.T) {
	p := ActivityPoint("entity_created", map[string]any{"kind": "hotspot"}, time.Unix(0, 0))
	line := influxdb2_write.PointToLineProtocol(p, time.Second)
	assert.Contains(t, line, "kind=hotspot count=1i")
}

func TestConnect_Disabled(t *testing.T) {
	m := NewManager(config.InfluxConfig{}, zerolog.Nop())
	assert.Error(t, m.Connect(context.Background()))
}

func TestBackupWriterWhenUnreachable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "activity.lp.gz")
	m := NewManager(config.InfluxConfig{
		Enabled:    true,
		Protocol:   "http",
		Host:       "127.0.0.1",
		Port:       "1",
		Org:        "kitchen360",
		Bucket:     "catalog_activity",
		BackupPath: path,
	}, zerolog.Nop())
	m.now = func() time.Time { return time.Unix(1700000000, 0) }

	require.NoError(t, m.Connect(context.Background()))
	assert.False(t, m.IsValid)

	m.Record("entity_selected", map[string]any{"id": "a1"})
	require.NoError(t, m.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	body, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, `catalog_activity,action=entity_selected id="a1" 1700000000000000000`, strings.TrimSpace(string(body)))
}

func TestWritePoint_NoBackup(t *testing.T) {
	m := NewManager(config.InfluxConfig{}, zerolog.Nop())
	assert.Error(t, m.WritePoint(ActivityPoint("x", nil, time.Now())))
	assert.NoError(t, m.Close())
}
