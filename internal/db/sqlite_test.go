package db

import (
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN(t *testing.T) {
	write := buildDSN("/tmp/meta.sqlite", "write")
	assert.True(t, strings.HasPrefix(write, "/tmp/meta.sqlite?"))
	for _, pragma := range []string{"_journal_mode=WAL", "_busy_timeout=5000", "_synchronous=NORMAL", "_foreign_keys=on", "_txlock=immediate"} {
		assert.Contains(t, write, pragma)
	}

	read := buildDSN("/tmp/meta.sqlite", "read")
	assert.NotContains(t, read, "_txlock")
}

func TestOpenSQLiteInvalidMode(t *testing.T) {
	_, err := OpenSQLite(filepath.Join(t.TempDir(), "meta.sqlite"), "invalid", 0)
	require.Error(t, err)
}

func TestOpenSQLitePairPoolSplit(t *testing.T) {
	writeDB, readDB, err := OpenSQLitePair(filepath.Join(t.TempDir(), "meta.sqlite"), 4)
	require.NoError(t, err)
	t.Cleanup(func() {
		writeDB.Close()
		readDB.Close()
	})

	assert.Equal(t, 1, writeDB.Stats().MaxOpenConnections)
	assert.Equal(t, 4, readDB.Stats().MaxOpenConnections)

	var journalMode string
	require.NoError(t, writeDB.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", strings.ToLower(journalMode))
}

// The busy timeout has to absorb writer/reader contention on the shared
// file without surfacing SQLITE_BUSY.
func TestConcurrentWritersAndReaders(t *testing.T) {
	writeDB, readDB, err := OpenSQLitePair(filepath.Join(t.TempDir(), "meta.sqlite"), 4)
	require.NoError(t, err)
	t.Cleanup(func() {
		writeDB.Close()
		readDB.Close()
	})

	_, err = writeDB.Exec("CREATE TABLE counter (id INTEGER PRIMARY KEY, n INTEGER)")
	require.NoError(t, err)
	_, err = writeDB.Exec("INSERT INTO counter (id, n) VALUES (1, 0)")
	require.NoError(t, err)

	var wg sync.WaitGroup
	writeErrs := make([]error, 20)
	readErrs := make([]error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(idx int) {
			defer wg.Done()
			_, writeErrs[idx] = writeDB.Exec("UPDATE counter SET n = n + 1 WHERE id = 1")
		}(i)
		go func(idx int) {
			defer wg.Done()
			var n int
			readErrs[idx] = readDB.QueryRow("SELECT n FROM counter WHERE id = 1").Scan(&n)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 20; i++ {
		assert.NoError(t, writeErrs[i], "writer %d", i)
		assert.NoError(t, readErrs[i], "reader %d", i)
	}

	var n int
	require.NoError(t, readDB.QueryRow("SELECT n FROM counter WHERE id = 1").Scan(&n))
	assert.Equal(t, 20, n)
}
