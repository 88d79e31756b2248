package writer

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/moby/sys/atomicwriter"

	"github.com/shinji-kodama/blocksplice/internal/model"
)

// BackupSuffix is appended to the target path to name the backup copy.
const BackupSuffix = ".orig"

// defaultPerm is used when the target does not exist yet.
const defaultPerm fs.FileMode = 0o644

// Options controls how Write persists data.
type Options struct {
	// Mode selects atomic or in-place writing. Empty means atomic.
	Mode model.WriteMode

	// Backup copies the current file to BackupPath(path) before writing.
	Backup bool
}

// Result describes what Write did.
type Result struct {
	Path string `json:"path"`

	// Target is the file actually replaced when Path is a symbolic link.
	Target string `json:"target,omitempty"`

	// BackupPath is set when a backup copy was made.
	BackupPath string `json:"backupPath,omitempty"`

	Mode  model.WriteMode `json:"mode"`
	Bytes int             `json:"bytes"`
}

// BackupPath returns the path used for the backup copy of path.
func BackupPath(path string) string {
	return path + BackupSuffix
}

// Pending is a write that has passed every check and holds its output
// handle open, but has not touched the target yet.
//
// A Pending must be finished with exactly one call to Commit or Discard.
type Pending struct {
	data []byte
	res  Result
	perm fs.FileMode

	// target is path with symbolic links resolved.
	target string

	// atomic is the staged temp file in atomic mode. Closing it without
	// writing removes the temp file and leaves the target alone.
	atomic io.WriteCloser

	// file is the open target in in-place mode.
	file    *os.File
	created bool

	done bool
}

// Write replaces the contents of path with data.
//
// The full output is expected to be assembled by the caller; Write performs
// no transformation. Errors are wrapped with the path and operation so the
// CLI can report them directly.
func Write(path string, data []byte, opts Options) (Result, error) {
	p, err := Prepare(path, data, opts)
	if err != nil {
		return Result{}, err
	}
	return p.Commit()
}

// Prepare runs every check that can fail before the target is modified and
// stages the write:
//
//  1. Validate the write mode
//  2. Resolve symbolic links so the link's target is replaced and the link survives
//  3. Read the permission bits of the existing file
//  4. Copy the existing file to its backup path (if requested)
//  5. Create the temp file next to the target (atomic) or open the target
//     without truncating it (in-place)
//
// Callers writing several files prepare all of them before committing any,
// so a failure in one leaves every target unchanged.
func Prepare(path string, data []byte, opts Options) (*Pending, error) {
	mode := opts.Mode
	if mode == "" {
		mode = model.WriteAtomic
	}
	if !mode.IsValid() {
		return nil, fmt.Errorf("invalid write mode: %q", mode)
	}

	target, err := resolveTarget(path)
	if err != nil {
		return nil, err
	}

	perm, exists, err := currentPerm(target)
	if err != nil {
		return nil, err
	}

	p := &Pending{
		data:   data,
		perm:   perm,
		target: target,
		res:    Result{Path: path, Mode: mode, Bytes: len(data)},
	}
	if target != path {
		p.res.Target = target
	}

	if opts.Backup && exists {
		p.res.BackupPath = BackupPath(path)
		if err := copyFile(target, p.res.BackupPath, perm); err != nil {
			return nil, err
		}
	}

	switch mode {
	case model.WriteInPlace:
		f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY, perm)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s for writing: %w", path, err)
		}
		p.file = f
		p.created = !exists
	default:
		w, err := atomicwriter.New(target, perm)
		if err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", path, err)
		}
		p.atomic = w
	}

	return p, nil
}

// Commit replaces the target with the staged data.
func (p *Pending) Commit() (Result, error) {
	if p.done {
		return Result{}, errors.New("write already finished")
	}
	p.done = true

	path := p.res.Path
	if p.file != nil {
		if err := writeInPlace(p.file, p.data); err != nil {
			return Result{}, fmt.Errorf("failed to write %s: %w", path, err)
		}
		return p.res, nil
	}

	n, err := p.atomic.Write(p.data)
	if err == nil && n < len(p.data) {
		err = io.ErrShortWrite
	}
	if err != nil {
		// A failed write is recorded by the temp file, so Close discards it.
		_ = p.atomic.Close()
		return Result{}, fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := p.atomic.Close(); err != nil {
		return Result{}, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return p.res, nil
}

// Discard releases the staged write without touching the target. A backup
// copy made by Prepare is kept. Discard after Commit is a no-op.
func (p *Pending) Discard() error {
	if p.done {
		return nil
	}
	p.done = true

	if p.file != nil {
		err := p.file.Close()
		if p.created {
			if rmErr := os.Remove(p.target); rmErr != nil && err == nil {
				err = rmErr
			}
		}
		return err
	}
	return p.atomic.Close()
}

// resolveTarget follows symbolic links in path. A path that does not exist
// yet is returned unchanged.
func resolveTarget(path string) (string, error) {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return path, nil
		}
		return "", fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.Mode()&fs.ModeSymlink == 0 {
		return path, nil
	}

	target, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve symbolic link %s: %w", path, err)
	}
	return target, nil
}

// currentPerm returns the permission bits of the existing file, or the
// default when it does not exist.
func currentPerm(path string) (fs.FileMode, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultPerm, false, nil
		}
		return 0, false, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return 0, false, fmt.Errorf("failed to write %s: is a directory", path)
	}
	return info.Mode().Perm(), true, nil
}

// writeInPlace truncates f and writes data through the same handle.
func writeInPlace(f *os.File, data []byte) error {
	if err := f.Truncate(0); err != nil {
		_ = f.Close()
		return err
	}

	if _, err := f.WriteAt(data, 0); err != nil {
		_ = f.Close()
		return err
	}

	// Close reports deferred write errors on some filesystems.
	return f.Close()
}

// copyFile copies src to dst with the given mode, replacing dst.
func copyFile(src, dst string, mode fs.FileMode) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source file %s: %w", src, err)
	}
	defer func() { _ = srcFile.Close() }()

	dstFile, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("failed to create backup file %s: %w", dst, err)
	}

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		_ = dstFile.Close()
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}

	// A close error means the backup may be incomplete.
	if err := dstFile.Close(); err != nil {
		return fmt.Errorf("failed to close backup file %s: %w", dst, err)
	}
	return nil
}
