package manifest

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corevcs "github.com/rcowham/corevcs"
)

func sampleManifest() *Manifest {
	return &Manifest{
		Comment: "fix the thing",
		Date:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		User:    "alice",
		Parents: []string{strings.Repeat("a", 40)},
		Files: []FileEntry{
			{Path: "b.txt", Hash: strings.Repeat("b", 40)},
			{Path: "a.txt", Hash: strings.Repeat("c", 40)},
		},
	}
}

func TestEncodeDecodeRoundtrip(t *testing.T) {
	m := sampleManifest()
	raw, err := Encode(m)
	require.NoError(t, err)

	got, err := Decode(raw)
	require.NoError(t, err)

	assert.Equal(t, m.Comment, got.Comment)
	assert.Equal(t, m.Date, got.Date)
	assert.Equal(t, m.User, got.User)
	assert.Equal(t, m.Parents, got.Parents)
	require.Len(t, got.Files, 2)
	assert.Equal(t, "a.txt", got.Files[0].Path)
	assert.Equal(t, "b.txt", got.Files[1].Path)
}

func TestEncodeSortsFCardsByPath(t *testing.T) {
	m := sampleManifest()
	raw, err := Encode(m)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(raw), "\n"), "\n")
	var fLines []string
	for _, l := range lines {
		if strings.HasPrefix(l, "F ") {
			fLines = append(fLines, l)
		}
	}
	require.Len(t, fLines, 2)
	assert.True(t, fLines[0] < fLines[1])
}

func TestEncodeCardsInAlphabeticalOrder(t *testing.T) {
	m := sampleManifest()
	m.Mimetype = "text/plain"
	m.Tags = []TagCard{{Op: AddPropagating, Name: "release"}}
	raw, err := Encode(m)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(raw), "\n"), "\n")
	var lastCode byte
	for _, l := range lines {
		code := l[0]
		assert.GreaterOrEqual(t, code, lastCode)
		lastCode = code
	}
}

func TestDecodeRejectsBadZCard(t *testing.T) {
	m := sampleManifest()
	raw, err := Encode(m)
	require.NoError(t, err)
	tampered := strings.Replace(string(raw), "fix the thing", "fix a different thing", 1)
	_, err = Decode([]byte(tampered))
	require.Error(t, err)
	kind, ok := corevcs.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, corevcs.Integrity, kind)
}

func TestDecodeRejectsOutOfOrderFCards(t *testing.T) {
	m := &Manifest{
		Comment: "x",
		Date:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		User:    "bob",
	}
	raw, err := Encode(m)
	require.NoError(t, err)
	text := strings.TrimSuffix(string(raw), "\n")
	lines := strings.Split(text, "\n")
	// Inject two F-cards out of path order just before the Z-card.
	zIdx := len(lines) - 1
	injected := append([]string{}, lines[:zIdx]...)
	injected = append(injected, "F b.txt "+strings.Repeat("b", 40))
	injected = append(injected, "F a.txt "+strings.Repeat("a", 40))
	injected = append(injected, lines[zIdx])
	tampered := strings.Join(injected, "\n") + "\n"

	_, err = Decode([]byte(tampered))
	require.Error(t, err)
}

func TestDecodeRejectsOutOfOrderCards(t *testing.T) {
	// U-card before C-card violates strict alphabetical card order.
	tampered := "U alice\nC hello\nD 2026-01-01T00:00:00.000\nZ 0123456789abcdef0123456789abcdef\n"
	_, err := Decode([]byte(tampered))
	require.Error(t, err)
}

func TestEscapeUnescapeFieldRoundtrip(t *testing.T) {
	samples := []string{
		"plain",
		"with space",
		"tab\tand\nnewline",
		"back\\slash",
		"carriage\rreturn",
	}
	for _, s := range samples {
		escaped := escapeField(s)
		assert.NotContains(t, escaped, "\n")
		got, err := unescapeField(escaped)
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
}

func TestDecodeEmptyCommentUsesNoCommentPlaceholder(t *testing.T) {
	m := &Manifest{
		Date: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		User: "carol",
	}
	raw, err := Encode(m)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `C (no\scomment)`)

	got, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "", got.Comment)
}

func TestFileEntryRemovedInDeltaHasNoHash(t *testing.T) {
	m := &Manifest{
		Baseline: strings.Repeat("d", 40),
		Comment:  "remove a file",
		Date:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		User:     "dave",
		Files:    []FileEntry{{Path: "gone.txt"}},
	}
	raw, err := Encode(m)
	require.NoError(t, err)
	got, err := Decode(raw)
	require.NoError(t, err)
	require.Len(t, got.Files, 1)
	assert.Equal(t, "gone.txt", got.Files[0].Path)
	assert.Equal(t, "", got.Files[0].Hash)
}

func TestTagCardRoundtrip(t *testing.T) {
	m := sampleManifest()
	m.Tags = []TagCard{
		{Op: AddPropagating, Name: "closed"},
		{Op: Cancel, Name: "closed"},
	}
	raw, err := Encode(m)
	require.NoError(t, err)
	got, err := Decode(raw)
	require.NoError(t, err)
	require.Len(t, got.Tags, 2)
}

func TestCherrypickCardRoundtrip(t *testing.T) {
	m := sampleManifest()
	m.Cherrypicks = []Cherrypick{{Add: true, Hash: strings.Repeat("e", 40)}}
	raw, err := Encode(m)
	require.NoError(t, err)
	got, err := Decode(raw)
	require.NoError(t, err)
	require.Len(t, got.Cherrypicks, 1)
	assert.True(t, got.Cherrypicks[0].Add)
	assert.Equal(t, strings.Repeat("e", 40), got.Cherrypicks[0].Hash)
}
