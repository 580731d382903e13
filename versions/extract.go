package versions

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/moby/go-archive"
)

// ExtractTarGz unpacks the tar archive at src into dest. Compression is detected
// from the stream; entries resolving outside dest are rejected.
func ExtractTarGz(src, dest string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := os.MkdirAll(dest, 0755); err != nil {
		return err
	}
	if err := archive.Untar(f, dest, &archive.TarOptions{NoLchown: true}); err != nil {
		return fmt.Errorf("failed to unpack %s: %w", src, err)
	}
	return nil
}

func writeFile(path string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
