package main

import (
	"bufio"
	"bytes"
	"context"
	"dbeval/config"
	"dbeval/generator"
	"dbeval/report"
	"encoding/json"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunHarnessOnMemory(t *testing.T) {
	cfg := &config.Config{
		Backends:   []string{config.Memory},
		Sizes:      []int{50, 100},
		Seed:       11,
		ResultFile: filepath.Join(t.TempDir(), "results.yaml"),
	}
	cfg.Integrity.SpeedOrders = 20
	cfg.Integrity.PairedTransactions = 2
	require.NoError(t, cfg.Validate())

	out := &bytes.Buffer{}
	require.NoError(t, runHarness(context.Background(), out, cfg, true))
	assert.Contains(t, out.String(), "SUMMARY")
	assert.Contains(t, out.String(), "memory")

	doc, err := report.ReadFile(cfg.ResultFile)
	require.NoError(t, err)
	result := doc.Results["memory"]
	require.NotNil(t, result)
	assert.Len(t, result.Completed, 3)
	assert.Empty(t, result.Failure)
	assert.Len(t, result.CrudPerformance, 2)

	require.Len(t, doc.Summary.Backends, 1)
	assert.Equal(t, 4, doc.Summary.Backends[0].Passed)
}

func TestBackendsOf(t *testing.T) {
	cfg := &config.Config{Backends: []string{config.Memory, config.PostgreSQL}}
	backends := backendsOf(cfg)
	require.Len(t, backends, 2)

	db, err := backends[0].Open(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "memory", db.Name())
	assert.Equal(t, config.PostgreSQL, backends[1].Name)
}

func TestWriteRecords(t *testing.T) {
	records, err := generator.New(5).Generate(3, "basic", generator.Basic)
	require.NoError(t, err)

	out := &bytes.Buffer{}
	require.NoError(t, writeRecords(out, io.Discard, records))

	scanner := bufio.NewScanner(out)
	ids := []string{}
	for scanner.Scan() {
		r := generator.Record{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &r))
		assert.Equal(t, generator.Basic, r.Kind)
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{records[0].ID, records[1].ID, records[2].ID}, ids)
}
