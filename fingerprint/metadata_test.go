package fingerprint

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shuakami/backupwatch/fserr"
)

func TestStat(t *testing.T) {
	f, fsys := newMemFingerprinter(t)
	writeFile(t, fsys, "/doc.txt", []byte("12345"))
	mtime := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, fsys.Chtimes("/doc.txt", mtime, mtime))

	md, err := f.Stat("/doc.txt")
	require.NoError(t, err)
	assert.Equal(t, "/doc.txt", md.Path)
	assert.Equal(t, int64(5), md.Size)
	assert.True(t, md.ModTime.Equal(mtime))
	assert.False(t, md.IsDir)
}

func TestStat_InvalidModTime(t *testing.T) {
	f, fsys := newMemFingerprinter(t)
	writeFile(t, fsys, "/old.txt", []byte("abc"))

	for _, mtime := range []time.Time{
		{},
		time.Date(1500, time.June, 1, 0, 0, 0, 0, time.UTC),
	} {
		require.NoError(t, fsys.Chtimes("/old.txt", mtime, mtime))

		md, err := f.Stat("/old.txt")
		require.Error(t, err)
		assert.ErrorIs(t, err, fserr.ErrMetadataUnreadable)
		assert.False(t, fserr.IsIO(err))
		assert.Equal(t, int64(3), md.Size)
	}
}

func TestStat_Missing(t *testing.T) {
	f, _ := newMemFingerprinter(t)

	_, err := f.Stat("/nope")
	assert.ErrorIs(t, err, fserr.ErrIO)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
