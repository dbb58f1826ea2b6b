package document

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKind(t *testing.T) {
	assert.Equal(t, KindPDF, Kind("/a/b.PDF"))
	assert.Equal(t, KindImage, Kind("photo.jpeg"))
	assert.Equal(t, KindImage, Kind("photo.JPG"))
	assert.Equal(t, KindOther, Kind("notes.txt"))
}

func TestExtensionConverter(t *testing.T) {
	ctx := context.Background()

	t.Run("pdf passes through", func(t *testing.T) {
		c := ExtensionConverter{Import: func([]string, string) error {
			t.Fatal("import must not be called")
			return nil
		}}
		out, err := c.Convert(ctx, "/tmp/doc.pdf")
		require.NoError(t, err)
		assert.Equal(t, "/tmp/doc.pdf", out)
	})

	t.Run("unknown passes through", func(t *testing.T) {
		out, err := ExtensionConverter{}.Convert(ctx, "/tmp/doc.ps")
		require.NoError(t, err)
		assert.Equal(t, "/tmp/doc.ps", out)
	})

	t.Run("image converted into out dir", func(t *testing.T) {
		dir := t.TempDir()
		var gotImages []string
		c := ExtensionConverter{
			OutDir: filepath.Join(dir, "converted"),
			Import: func(images []string, out string) error {
				gotImages = images
				return os.WriteFile(out, []byte("%PDF-1.4"), 0600)
			},
		}
		out, err := c.Convert(ctx, filepath.Join(dir, "scan.jpg"))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "converted", "scan.pdf"), out)
		assert.Equal(t, []string{filepath.Join(dir, "scan.jpg")}, gotImages)
		assert.FileExists(t, out)
	})

	t.Run("import failure surfaces", func(t *testing.T) {
		c := ExtensionConverter{Import: func([]string, string) error {
			return errors.New("bad jpeg")
		}}
		_, err := c.Convert(ctx, filepath.Join(t.TempDir(), "scan.jpg"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bad jpeg")
	})
}

func TestPDFPageCounter_Unsupported(t *testing.T) {
	_, err := PDFPageCounter{}.CountPages(context.Background(), "notes.txt")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupported))
}

func TestPDFPageCounter_ImageIsOnePage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.png")
	require.NoError(t, os.WriteFile(path, []byte{0x89, 'P', 'N', 'G'}, 0600))
	n, err := PDFPageCounter{}.CountPages(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
