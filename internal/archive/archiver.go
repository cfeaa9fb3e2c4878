package archive

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// renameFile is swappable in tests to exercise the cross-volume fallback.
var renameFile = os.Rename

// Archiver relocates descriptor files out of the watched directory without
// ever losing or overwriting one.
type Archiver struct {
	destDir string
}

// New builds an archiver targeting the given destination directory.
func New(destDir string) *Archiver {
	return &Archiver{destDir: destDir}
}

// Dir returns the destination directory.
func (a *Archiver) Dir() string {
	return a.destDir
}

// Move relocates src into the destination directory and returns the final
// path. Same-volume moves are a single rename. Across volumes the file is
// copied to a temporary name, verified by size and checksum, promoted with a
// rename, and only then is the original removed — a crash at any point
// leaves either the original or the verified copy intact. Name collisions
// get a numeric suffix; existing files are never overwritten.
func (a *Archiver) Move(src string) (string, error) {
	if err := os.MkdirAll(a.destDir, 0o755); err != nil {
		return "", fmt.Errorf("create destination %q: %w", a.destDir, err)
	}

	dest, err := a.resolveCollision(filepath.Base(src))
	if err != nil {
		return "", err
	}

	err = renameFile(src, dest)
	if err == nil {
		return dest, nil
	}
	if !isCrossDevice(err) {
		return "", fmt.Errorf("rename %q: %w", src, err)
	}

	if err := copyVerified(src, dest); err != nil {
		return "", fmt.Errorf("copy %q across volumes: %w", src, err)
	}
	if err := os.Remove(src); err != nil {
		// The verified copy exists; report the leftover source rather than
		// pretending the move failed.
		return dest, fmt.Errorf("remove original %q after copy: %w", src, err)
	}
	return dest, nil
}

// resolveCollision picks a destination path that does not exist yet,
// probing name-1.ext, name-2.ext and so on before falling back to a
// timestamp suffix.
func (a *Archiver) resolveCollision(name string) (string, error) {
	candidate := filepath.Join(a.destDir, name)
	if _, err := os.Lstat(candidate); errors.Is(err, os.ErrNotExist) {
		return candidate, nil
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; i <= 1000; i++ {
		candidate = filepath.Join(a.destDir, fmt.Sprintf("%s-%d%s", stem, i, ext))
		if _, err := os.Lstat(candidate); errors.Is(err, os.ErrNotExist) {
			return candidate, nil
		}
	}

	candidate = filepath.Join(a.destDir, fmt.Sprintf("%s-%d%s", stem, time.Now().UnixNano(), ext))
	if _, err := os.Lstat(candidate); errors.Is(err, os.ErrNotExist) {
		return candidate, nil
	}
	return "", fmt.Errorf("no free name for %q in %q", name, a.destDir)
}

func isCrossDevice(err error) bool {
	var linkErr *os.LinkError
	if errors.As(err, &linkErr) {
		return errors.Is(linkErr.Err, syscall.EXDEV)
	}
	return errors.Is(err, syscall.EXDEV)
}

// copyVerified streams src to a temporary file next to dest, verifies size
// and sha256, and promotes it with a rename. The destination never holds a
// partial file under its final name.
func copyVerified(src, dest string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dest + ".part"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		_ = out.Close()
		_ = os.Remove(tmp)
	}()

	srcHasher := sha256.New()
	destHasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(out, destHasher), io.TeeReader(in, srcHasher))
	if err != nil {
		return err
	}
	if err := out.Sync(); err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	if written != srcInfo.Size() {
		return fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", srcInfo.Size(), written)
	}
	if !bytes.Equal(srcHasher.Sum(nil), destHasher.Sum(nil)) {
		return errors.New("copy hash mismatch: file corrupted during copy")
	}

	if err := os.Rename(tmp, dest); err != nil {
		return fmt.Errorf("promote copy: %w", err)
	}
	return nil
}
