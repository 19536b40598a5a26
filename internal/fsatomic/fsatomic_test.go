package fsatomic

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteFileCreatesParents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a", "b", "out.json")

	require.NoError(t, WriteFile(path, []byte(`{"x":1}`)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, `{"x":1}`, string(data))
}

func TestWriteFileLeavesNoTempBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")

	require.NoError(t, WriteFile(path, []byte("one")))
	require.NoError(t, WriteFile(path, []byte("two")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "two", string(data))
}

func TestAppendJSONLAndReadBack(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.jsonl")

	type rec struct {
		N int `json:"n"`
	}
	for i := 0; i < 3; i++ {
		require.NoError(t, AppendJSONL(path, rec{N: i}))
	}

	var got []int
	err := ReadJSONL(path, func(line []byte) error {
		var r rec
		if err := json.Unmarshal(line, &r); err != nil {
			return err
		}
		got = append(got, r.N)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []int{0, 1, 2}, got)
}

func TestReadJSONLMissingFileIsNotAnError(t *testing.T) {
	err := ReadJSONL(filepath.Join(t.TempDir(), "absent.jsonl"), func([]byte) error {
		t.Fatal("fn should not be called")
		return nil
	})
	require.NoError(t, err)
}
