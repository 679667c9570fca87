package artifact

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func archiveEntries(t *testing.T, archive string) []string {
	f, err := os.Open(archive)
	require.NoError(t, err)
	defer f.Close()

	gz, err := gzip.NewReader(f)
	require.NoError(t, err)

	var names []string

	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)

		names = append(names, header.Name)
	}

	return names
}

func makeSite(t *testing.T) string {
	site := filepath.Join(t.TempDir(), "var", "www", "html")

	require.NoError(t, os.MkdirAll(filepath.Join(site, "wp-content", "uploads"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(site, "wp-config.php"), []byte("<?php define('DB_NAME', 'wordpress');"), 0640))
	require.NoError(t, os.WriteFile(filepath.Join(site, "wp-content", "uploads", "logo.png"), []byte{0x89, 'P', 'N', 'G'}, 0644))
	require.NoError(t, os.Symlink("wp-config.php", filepath.Join(site, "config-link.php")))

	return site
}

func TestTarArchiver_EntriesKeepAbsolutePaths(t *testing.T) {
	site := makeSite(t)
	dest := filepath.Join(t.TempDir(), "wordpress.site.tar.gz")

	err := NewTarArchiver(discardLogger()).Archive(context.Background(), site, dest)
	require.NoError(t, err)

	names := archiveEntries(t, dest)
	prefix := strings.TrimPrefix(filepath.ToSlash(site), "/")

	assert.Contains(t, names, prefix+"/")
	assert.Contains(t, names, prefix+"/wp-config.php")
	assert.Contains(t, names, prefix+"/wp-content/uploads/logo.png")
	for _, name := range names {
		assert.False(t, strings.HasPrefix(name, "/"), name)
	}
	assert.NoFileExists(t, dest+".part")
}

func TestTarArchiver_MissingSource(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "wordpress.site.tar.gz")

	err := NewTarArchiver(discardLogger()).Archive(context.Background(), "/does/not/exist", dest)

	assert.Error(t, err)
	assert.NoFileExists(t, dest)
}

func TestTarExtractor_RoundTrip(t *testing.T) {
	site := makeSite(t)
	archive := filepath.Join(t.TempDir(), "wordpress.site.tar.gz")
	require.NoError(t, NewTarArchiver(discardLogger()).Archive(context.Background(), site, archive))

	root := t.TempDir()

	err := NewTarExtractor(discardLogger()).Extract(context.Background(), archive, root)
	require.NoError(t, err)

	restored := filepath.Join(root, site)

	content, err := os.ReadFile(filepath.Join(restored, "wp-config.php"))
	require.NoError(t, err)
	assert.Equal(t, "<?php define('DB_NAME', 'wordpress');", string(content))

	info, err := os.Stat(filepath.Join(restored, "wp-config.php"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0640), info.Mode().Perm())

	link, err := os.Readlink(filepath.Join(restored, "config-link.php"))
	require.NoError(t, err)
	assert.Equal(t, "wp-config.php", link)

	assert.FileExists(t, filepath.Join(restored, "wp-content", "uploads", "logo.png"))
}

func TestTarExtractor_OverwritesExistingFiles(t *testing.T) {
	site := makeSite(t)
	archive := filepath.Join(t.TempDir(), "wordpress.site.tar.gz")
	require.NoError(t, NewTarArchiver(discardLogger()).Archive(context.Background(), site, archive))

	root := t.TempDir()
	target := filepath.Join(root, site, "wp-config.php")
	require.NoError(t, os.MkdirAll(filepath.Dir(target), 0755))
	require.NoError(t, os.WriteFile(target, []byte("tampered"), 0640))

	require.NoError(t, NewTarExtractor(discardLogger()).Extract(context.Background(), archive, root))

	content, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "<?php define('DB_NAME', 'wordpress');", string(content))
}

func TestTarExtractor_RejectsTraversal(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "evil.tar.gz")

	f, err := os.Create(archive)
	require.NoError(t, err)

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "../../etc/cron.d/evil", Mode: 0644, Size: 4, Typeflag: tar.TypeReg}))
	_, err = tw.Write([]byte("evil"))
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	root := filepath.Join(t.TempDir(), "root")
	require.NoError(t, os.Mkdir(root, 0755))

	err = NewTarExtractor(discardLogger()).Extract(context.Background(), archive, root)

	assert.Error(t, err)
	assert.NoFileExists(t, filepath.Join(filepath.Dir(root), "etc", "cron.d", "evil"))
}

func TestDestPath(t *testing.T) {
	p, err := destPath("/", "var/www/html/index.php")
	assert.NoError(t, err)
	assert.Equal(t, "/var/www/html/index.php", p)

	_, err = destPath("/restore", "../etc/passwd")
	assert.Error(t, err)

	p, err = destPath("/restore", "./")
	assert.NoError(t, err)
	assert.Equal(t, "/restore", p)
}
