package importer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}
	a := write("a.fsh", "Profile: A\nParent: Patient\n")
	b := write(filepath.Join("sub", "b.FSH"), "Profile: B\nParent: Patient\n")
	notes := write("notes.txt", "not FSH")

	files, err := LoadFiles([]string{dir, a, filepath.Join(dir, "missing.fsh")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.fsh")

	require.Len(t, files, 2, "directories yield .fsh files only, each once")
	assert.Equal(t, a, files[0].Path)
	assert.Equal(t, b, files[1].Path)
	assert.Equal(t, "Profile: A\nParent: Patient\n", string(files[0].Content))

	files, err = LoadFiles([]string{notes})
	require.NoError(t, err)
	require.Len(t, files, 1, "files named directly are read whatever their extension")
	assert.Equal(t, notes, files[0].Path)
}

func TestLoadFilesThenImport(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "aliases.fsh"), []byte("Alias: $LNC = http://loinc.org\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vs.fsh"), []byte("ValueSet: VS\n* $LNC#1234-5\n"), 0o644))

	files, err := LoadFiles([]string{dir})
	require.NoError(t, err)
	res := importFSH(t, nil, string(files[0].Content), string(files[1].Content))

	require.Len(t, res.Documents, 2)
	vs := res.Documents[1].ValueSets["VS"]
	require.NotNil(t, vs)
	require.Len(t, vs.Rules, 1)
	assert.Empty(t, res.Issues.Issues)
}
