package blob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/mkrupp/library/internal/domain"
	"github.com/mkrupp/library/internal/infra/logging"
)

var ErrBytesWrittenMismatch = errors.New("bytes written mismatch")

const (
	shardLength = 2
	shardDepth  = 2
)

// FileSystemBlobRepositoryConfig holds configuration for the filesystem-based blob repository.
type FileSystemBlobRepositoryConfig struct {
	// Basedir is the root directory for blob storage
	Basedir string `env:"BASEDIR" default:"var/storage/blob"`
}

// FileSystemBlobRepositoryFactory returns a RepositoryFactory backed by cfg.
func FileSystemBlobRepositoryFactory(cfg FileSystemBlobRepositoryConfig) RepositoryFactory {
	return func(ctx context.Context, name string, ext string) (Repository, error) {
		return NewFileSystemBlobRepository(ctx, name, ext, cfg)
	}
}

// NewFileSystemBlobRepository creates the storage directory <Basedir>/<name>
// if needed.
func NewFileSystemBlobRepository(
	ctx context.Context,
	name string,
	ext string,
	cfg FileSystemBlobRepositoryConfig,
) (*FileSystemRepository, error) {
	repo := &FileSystemRepository{
		root: filepath.Join(cfg.Basedir, name),
		ext:  ext,
		log: logging.GetLogger("repo.blob.filesystem").With(
			logging.Group("repo", "basedir", cfg.Basedir, "name", name, "ext", ext),
		),
	}

	if err := os.MkdirAll(repo.root, 0o755); err != nil {
		repo.log.ErrorContext(ctx, "init storage failed", "error", err)

		return nil, fmt.Errorf("mkdir all: %w", err)
	}

	return repo, nil
}

// FileSystemRepository implements Repository on the local filesystem. Blobs
// are sharded into nested directories named after the leading characters of
// their ID, so that variants land next to the original:
//
//	<root>/ab/cd/abcd1234....jpg
//	<root>/ab/cd/abcd1234..._w200.jpg
type FileSystemRepository struct {
	root string
	ext  string
	log  logging.Logger
}

var _ Repository = (*FileSystemRepository)(nil)

// GetFilename returns the full filesystem path for a blob with the given ID.
func (fsRepo *FileSystemRepository) GetFilename(id domain.BlobID) string {
	return filepath.Join(fsRepo.shardDir(id), fsRepo.basename(id)+"."+fsRepo.ext)
}

func (fsRepo *FileSystemRepository) basename(id domain.BlobID) string {
	return strings.NewReplacer("/", "", "\\", "", ".", "").Replace(string(id))
}

func (fsRepo *FileSystemRepository) shardDir(id domain.BlobID) string {
	name := fsRepo.basename(id)
	if i := strings.IndexByte(name, '_'); i >= 0 {
		name = name[:i]
	}

	if pad := shardLength*shardDepth - len(name); pad > 0 {
		name = strings.Repeat("0", pad) + name
	}

	parts := []string{fsRepo.root}
	for i := range shardDepth {
		parts = append(parts, name[i*shardLength:(i+1)*shardLength])
	}

	return filepath.Join(parts...)
}

func (fsRepo *FileSystemRepository) Lock(ctx context.Context, id domain.BlobID, exclusive bool) (release func(), err error) {
	lockfile := fsRepo.GetFilename(id) + ".lock"
	log := fsRepo.log.With(logging.Group("blob", "id", id, "exclusive", exclusive))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "lock failed", "error", err)
		}
	}()

	mode := syscall.LOCK_SH
	if exclusive {
		mode = syscall.LOCK_EX
	}

	if err := os.MkdirAll(filepath.Dir(lockfile), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir all: %w", err)
	}

	file, err := os.OpenFile(lockfile, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lockfile: %w", err)
	}

	if err := syscall.Flock(int(file.Fd()), mode); err != nil {
		_ = file.Close()

		return nil, fmt.Errorf("flock: %w", err)
	}

	log.DebugContext(ctx, "lock acquired")

	return func() {
		_ = syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		_ = file.Close()

		log.DebugContext(ctx, "lock released")
	}, nil
}

func (fsRepo *FileSystemRepository) Exists(ctx context.Context, id domain.BlobID) bool {
	_, err := os.Stat(fsRepo.GetFilename(id))

	return err == nil
}

// Store writes to a temp file in the target directory and renames it into
// place, so readers never observe a partially written blob.
func (fsRepo *FileSystemRepository) Store(ctx context.Context, blob *domain.Blob) (err error) {
	filename := fsRepo.GetFilename(blob.ID)

	defer func() {
		log := fsRepo.log.With(logging.Group("blob", "id", blob.ID, "filename", filename))
		if err != nil {
			log.ErrorContext(ctx, "blob store failed", "error", err)
		} else {
			log.DebugContext(ctx, "blob stored", "size", blob.Size())
		}
	}()

	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("mkdir all: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(filename), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}

	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	n, err := blob.WriteTo(tmp)
	if err == nil && n != blob.Size() {
		err = fmt.Errorf("%w: expected %d, got %d", ErrBytesWrittenMismatch, blob.Size(), n)
	}

	if err == nil {
		err = tmp.Sync()
	}

	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		return fmt.Errorf("write temp: %w", err)
	}

	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod: %w", err)
	}

	if err := os.Rename(tmp.Name(), filename); err != nil {
		return fmt.Errorf("rename: %w", err)
	}

	return nil
}

func (fsRepo *FileSystemRepository) Fetch(ctx context.Context, id domain.BlobID) (*domain.Blob, error) {
	filename := fsRepo.GetFilename(id)

	body, err := os.ReadFile(filename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("fetch %s: %w", id, ErrBlobNotFound)
		}

		fsRepo.log.ErrorContext(ctx, "blob fetch failed", "error", err, "filename", filename)

		return nil, fmt.Errorf("read file: %w", err)
	}

	return domain.NewBlob(id, body), nil
}

func (fsRepo *FileSystemRepository) Delete(ctx context.Context, id domain.BlobID) error {
	if err := os.Remove(fsRepo.GetFilename(id)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("delete %s: %w", id, ErrBlobNotFound)
		}

		return fmt.Errorf("remove: %w", err)
	}

	fsRepo.log.DebugContext(ctx, "blob deleted", "id", id)

	return nil
}

func (fsRepo *FileSystemRepository) DeleteVariants(ctx context.Context, id domain.BlobID) (err error) {
	pattern := filepath.Join(fsRepo.shardDir(id), fsRepo.basename(id)+"_*."+fsRepo.ext)

	defer func() {
		log := fsRepo.log.With(logging.Group("blob", "id", id, "pattern", pattern))
		if err != nil {
			log.ErrorContext(ctx, "blob variant purge failed", "error", err)
		} else {
			log.DebugContext(ctx, "blob variants purged")
		}
	}()

	filenames, err := filepath.Glob(pattern)
	if err != nil {
		return fmt.Errorf("glob: %w", err)
	}

	for _, filename := range filenames {
		if err := os.Remove(filename); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove: %w", err)
		}
	}

	return nil
}
