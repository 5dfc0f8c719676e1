package granule

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFingerprintEqual(t *testing.T) {
	base := Fingerprint{ETag: "tag1", LastModified: "modified"}

	require.True(t, base.Equal(Fingerprint{ETag: "tag1", LastModified: "modified"}))
	require.False(t, base.Equal(Fingerprint{ETag: "tag1_a", LastModified: "modified"}))
	require.False(t, base.Equal(Fingerprint{ETag: "tag1", LastModified: "modified_a"}))
	require.False(t, base.Equal(Fingerprint{}))
}

func TestBatchNamesSorted(t *testing.T) {
	b := Batch{
		"granule_c": {},
		"granule_a": {},
		"granule_b": {},
	}
	require.Equal(t, []string{"granule_a", "granule_b", "granule_c"}, b.Names())
}

func TestBatchSubset(t *testing.T) {
	b := Batch{
		"granule_a": {ETag: "a"},
		"granule_b": {ETag: "b"},
	}
	sub := b.Subset([]string{"granule_b", "missing"})
	require.Equal(t, Batch{"granule_b": {ETag: "b"}}, sub)
}

func TestFromGranulesRoundTrip(t *testing.T) {
	b := Batch{
		"granule_a": {ETag: "tag1_a", LastModified: "modified_a"},
		"granule_b": {ETag: "tag1_b", LastModified: "modified_b"},
	}
	granules := b.Granules()
	require.Len(t, granules, 2)
	require.Equal(t, "granule_a", granules[0].Name)
	require.Equal(t, b, FromGranules(granules))
}

func TestGranuleString(t *testing.T) {
	g := Granule{Link: "https://host/f.nc", Filename: "f.nc", DateModified: "2020-01-02", TimeModified: "10:11", Meridiem: "AM"}
	require.Equal(t, "https://host/f.nc, f.nc, 2020-01-02, 10:11, AM", g.String())
}

func TestDecodeBatchJSON(t *testing.T) {
	input := `{"granule_a": {"ETag": "tag1_a", "Last-Modified": "modified_a"},
	           "granule_b": {"ETag": "tag1_b", "Last-Modified": "modified_b"}}`

	b, err := DecodeBatch(strings.NewReader(input), FormatJSON)
	require.NoError(t, err)
	require.Len(t, b, 2)
	require.Equal(t, Fingerprint{ETag: "tag1_b", LastModified: "modified_b"}, b["granule_b"])
}

func TestDecodeBatchYAML(t *testing.T) {
	input := `
granule_a:
  ETag: tag1
  Last-Modified: "Mon, 01 Jan 2024 00:00:00 GMT"
`
	b, err := DecodeBatch(strings.NewReader(input), FormatYAML)
	require.NoError(t, err)
	require.Equal(t, "Mon, 01 Jan 2024 00:00:00 GMT", b["granule_a"].LastModified)
}

func TestDecodeBatchRejectsUnknownFields(t *testing.T) {
	_, err := DecodeBatch(strings.NewReader(`{"a": {"ETag": "x", "Size": 10}}`), FormatJSON)
	require.Error(t, err)
}

func TestDecodeBatchRejectsEmptyName(t *testing.T) {
	_, err := DecodeBatch(strings.NewReader(`{"": {"ETag": "x"}}`), FormatJSON)
	require.ErrorContains(t, err, "empty granule name")
}

func TestDecodeBatchEmptyInput(t *testing.T) {
	b, err := DecodeBatch(strings.NewReader(""), FormatJSON)
	require.NoError(t, err)
	require.Empty(t, b)
}

func TestReadBatchFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "batch.yml")
	require.NoError(t, os.WriteFile(path, []byte("granule_a:\n  ETag: t\n  Last-Modified: m\n"), 0o644))

	b, err := ReadBatchFile(path, nil)
	require.NoError(t, err)
	require.Equal(t, Batch{"granule_a": {ETag: "t", LastModified: "m"}}, b)

	b, err = ReadBatchFile("-", strings.NewReader(`{"granule_b": {"ETag": "t2"}}`))
	require.NoError(t, err)
	require.Contains(t, b, "granule_b")

	_, err = ReadBatchFile(filepath.Join(dir, "missing.json"), nil)
	require.Error(t, err)
}

func TestEncodeBatchUsesWireKeys(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeBatch(&buf, Batch{"a": {ETag: "t", LastModified: "m"}}))
	require.Contains(t, buf.String(), `"Last-Modified": "m"`)
	require.Contains(t, buf.String(), `"ETag": "t"`)
}

func TestFormatForPath(t *testing.T) {
	require.Equal(t, FormatYAML, FormatForPath("x.YAML"))
	require.Equal(t, FormatYAML, FormatForPath("x.yml"))
	require.Equal(t, FormatJSON, FormatForPath("x.json"))
	require.Equal(t, FormatJSON, FormatForPath("x"))
}
