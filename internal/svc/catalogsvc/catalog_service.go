package catalogsvc

import (
	"context"
	"errors"
	"fmt"

	"github.com/mkrupp/library/internal/domain"
	"github.com/mkrupp/library/internal/infra/database"
	"github.com/mkrupp/library/internal/infra/logging"
	"github.com/mkrupp/library/internal/repo/blob"
	"github.com/mkrupp/library/internal/repo/book"
)

// CatalogService manages the book catalog and its cover images. Mutating
// operations take the caller's identity and require the librarian role.
type CatalogService struct {
	db     *database.DB
	books  book.Repository
	covers blob.Repository
	cfg    CatalogConfig
	log    logging.Logger
}

// NewCatalogService wires the book repository and opens the "covers" blob repository.
func NewCatalogService(
	ctx context.Context,
	db *database.DB,
	bookFactory book.RepositoryFactory,
	blobFactory blob.RepositoryFactory,
	cfg CatalogConfig,
) (*CatalogService, error) {
	if _, err := getInterpolatorByName(cfg.Interpolator); err != nil {
		return nil, fmt.Errorf("check config: %w", err)
	}

	covers, err := blobFactory(ctx, "covers", "bin")
	if err != nil {
		return nil, fmt.Errorf("new cover repository: %w", err)
	}

	return &CatalogService{
		db:     db,
		books:  bookFactory(db),
		covers: covers,
		cfg:    cfg,
		log:    logging.GetLogger("svc.catalogsvc.catalog_service"),
	}, nil
}

// DB returns the underlying store, e.g. for health checks.
func (svc *CatalogService) DB() *database.DB {
	return svc.db
}

// AddBook creates a book from a complete set of fields.
func (svc *CatalogService) AddBook(
	ctx context.Context,
	caller domain.Identity,
	input domain.BookPatch,
) (_ *domain.Book, err error) {
	log := svc.log.With(logging.Group("caller", "username", caller.Username))

	defer func() {
		if err != nil {
			log.WarnContext(ctx, "add book failed", "error", err)
		} else {
			log.InfoContext(ctx, "book added")
		}
	}()

	if err := domain.Authorize(caller, domain.RoleLibrarian); err != nil {
		return nil, err //nolint:wrapcheck
	}

	if err := input.Complete(); err != nil {
		return nil, err //nolint:wrapcheck
	}

	created := input.Apply(domain.Book{})

	if err := svc.db.WithinTx(ctx, func(ctx context.Context, tx *database.Tx) error {
		return svc.books.Create(ctx, tx, &created)
	}); err != nil {
		return nil, fmt.Errorf("create book: %w", err)
	}

	log = log.With(logging.Group("book", "id", created.ID))

	return &created, nil
}

// ListBooks returns all live books ordered by ID.
func (svc *CatalogService) ListBooks(ctx context.Context) ([]domain.Book, error) {
	books, err := svc.books.List(ctx, svc.db)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}

	return books, nil
}

// GetBook returns ErrBookNotFound for absent and soft-deleted books.
func (svc *CatalogService) GetBook(ctx context.Context, id int64) (*domain.Book, error) {
	found, err := svc.books.Get(ctx, svc.db, id)
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}

	return found, nil
}

// SearchBooks matches title and author partially and case-insensitively.
func (svc *CatalogService) SearchBooks(ctx context.Context, query domain.BookQuery) ([]domain.Book, error) {
	books, err := svc.books.Search(ctx, svc.db, query)
	if err != nil {
		return nil, fmt.Errorf("search books: %w", err)
	}

	return books, nil
}

// UpdateBook applies the present entries of patch. An empty patch only
// checks that the book exists and leaves the row untouched.
func (svc *CatalogService) UpdateBook(
	ctx context.Context,
	caller domain.Identity,
	id int64,
	patch domain.BookPatch,
) (updated *domain.Book, err error) {
	log := svc.log.With(
		logging.Group("caller", "username", caller.Username),
		logging.Group("book", "id", id),
	)

	defer func() {
		if err != nil {
			log.WarnContext(ctx, "update book failed", "error", err)
		} else {
			log.InfoContext(ctx, "book updated")
		}
	}()

	if err := domain.Authorize(caller, domain.RoleLibrarian); err != nil {
		return nil, err //nolint:wrapcheck
	}

	if err := patch.Validate(); err != nil {
		return nil, err //nolint:wrapcheck
	}

	if patch.Empty() {
		return svc.GetBook(ctx, id)
	}

	if err := svc.db.WithinTx(ctx, func(ctx context.Context, tx *database.Tx) error {
		if err := svc.books.Update(ctx, tx, id, patch); err != nil {
			return err //nolint:wrapcheck
		}

		current, err := svc.books.Get(ctx, tx, id)
		if err != nil {
			return err //nolint:wrapcheck
		}

		updated = current

		return nil
	}); err != nil {
		return nil, fmt.Errorf("update book: %w", err)
	}

	return updated, nil
}

// DeleteBook soft-deletes a live book.
func (svc *CatalogService) DeleteBook(ctx context.Context, caller domain.Identity, id int64) (err error) {
	log := svc.log.With(
		logging.Group("caller", "username", caller.Username),
		logging.Group("book", "id", id),
	)

	defer func() {
		if err != nil {
			log.WarnContext(ctx, "delete book failed", "error", err)
		} else {
			log.InfoContext(ctx, "book deleted")
		}
	}()

	if err := domain.Authorize(caller, domain.RoleLibrarian); err != nil {
		return err //nolint:wrapcheck
	}

	if err := svc.db.WithinTx(ctx, func(ctx context.Context, tx *database.Tx) error {
		return svc.books.SoftDelete(ctx, tx, id)
	}); err != nil {
		return fmt.Errorf("delete book: %w", err)
	}

	return nil
}

// StoreCover validates and stores a cover image and attaches it to the book.
// Cached variants of the previous cover are purged.
//
//nolint:cyclop
func (svc *CatalogService) StoreCover(
	ctx context.Context,
	caller domain.Identity,
	id int64,
	data []byte,
) (cover *domain.Cover, err error) {
	log := svc.log.With(
		logging.Group("caller", "username", caller.Username),
		logging.Group("cover", "book", id, "size", len(data)),
	)

	defer func() {
		if err != nil {
			log.WarnContext(ctx, "store cover failed", "error", err)
		} else {
			log.InfoContext(ctx, "cover stored")
		}
	}()

	if err := domain.Authorize(caller, domain.RoleLibrarian); err != nil {
		return nil, err //nolint:wrapcheck
	}

	if int64(len(data)) > svc.cfg.MaxCoverSize {
		return nil, fmt.Errorf("%w: %d exceeds %d bytes", domain.ErrCoverTooLarge, len(data), svc.cfg.MaxCoverSize)
	}

	mimeType, err := sniffCoverType(data)
	if err != nil {
		return nil, err
	}

	if _, err := decodeImage(data, mimeType); err != nil {
		return nil, err
	}

	// Fail before touching the blob store if the book is gone.
	if _, err := svc.GetBook(ctx, id); err != nil {
		return nil, err
	}

	cover = &domain.Cover{
		BookID:   id,
		MIMEType: mimeType,
		Blob:     domain.NewContentBlob(data),
	}

	log = log.With(logging.Group("cover", "id", cover.Blob.ID, "type", mimeType))

	if err := svc.storeBlob(ctx, cover.Blob); err != nil {
		return nil, err
	}

	var previous domain.BlobID

	if err := svc.db.WithinTx(ctx, func(ctx context.Context, tx *database.Tx) error {
		current, err := svc.books.Get(ctx, tx, id)
		if err != nil {
			return err //nolint:wrapcheck
		}

		previous = current.CoverID

		return svc.books.SetCover(ctx, tx, id, cover.Blob.ID, mimeType)
	}); err != nil {
		return nil, fmt.Errorf("set cover: %w", err)
	}

	// Originals are content-addressed and may be shared between books, so
	// only the derived variants are dropped.
	if previous != "" && previous != cover.Blob.ID {
		if err := svc.purgeVariants(ctx, previous); err != nil {
			log.WarnContext(ctx, "purge variants failed", "previous", previous, "error", err)
		}
	}

	return cover, nil
}

func (svc *CatalogService) storeBlob(ctx context.Context, data *domain.Blob) error {
	unlock, err := svc.covers.Lock(ctx, data.ID, true)
	if err != nil {
		return fmt.Errorf("lock cover: %w", err)
	}
	defer unlock()

	if svc.covers.Exists(ctx, data.ID) {
		return nil
	}

	if err := svc.covers.Store(ctx, data); err != nil {
		return fmt.Errorf("store cover: %w", err)
	}

	return nil
}

func (svc *CatalogService) purgeVariants(ctx context.Context, id domain.BlobID) error {
	unlock, err := svc.covers.Lock(ctx, id, true)
	if err != nil {
		return fmt.Errorf("lock cover: %w", err)
	}
	defer unlock()

	//nolint:wrapcheck
	return svc.covers.DeleteVariants(ctx, id)
}

// FetchCover returns the cover of a live book. A positive width returns a
// variant scaled to that width, cached after the first request; widths at
// or above the original's return the original.
func (svc *CatalogService) FetchCover(ctx context.Context, id int64, width int) (cover *domain.Cover, err error) {
	log := svc.log.With(logging.Group("cover", "book", id, "width", width))

	defer func() {
		if err != nil {
			log.WarnContext(ctx, "fetch cover failed", "error", err)
		} else {
			log.DebugContext(ctx, "cover fetched")
		}
	}()

	if width < 0 {
		return nil, fmt.Errorf("%w: width must not be negative", domain.ErrBadRequest)
	}

	found, err := svc.GetBook(ctx, id)
	if err != nil {
		return nil, err
	}

	if !found.HasCover() {
		return nil, domain.ErrCoverNotFound
	}

	original, err := svc.fetchBlob(ctx, found.CoverID)
	if err != nil {
		return nil, err
	}

	cover = &domain.Cover{BookID: id, MIMEType: found.CoverType, Blob: original}
	if width == 0 {
		return cover, nil
	}

	variant, err := svc.fetchVariant(ctx, original, found.CoverType, width)
	if err != nil {
		return nil, err
	}

	cover.Blob = variant

	return cover, nil
}

func (svc *CatalogService) fetchBlob(ctx context.Context, id domain.BlobID) (*domain.Blob, error) {
	unlock, err := svc.covers.Lock(ctx, id, false)
	if err != nil {
		return nil, fmt.Errorf("lock cover: %w", err)
	}
	defer unlock()

	data, err := svc.covers.Fetch(ctx, id)
	if err != nil {
		if errors.Is(err, blob.ErrBlobNotFound) {
			return nil, errors.Join(domain.ErrCoverNotFound, err)
		}

		return nil, fmt.Errorf("fetch cover: %w", err)
	}

	return data, nil
}

func (svc *CatalogService) fetchVariant(
	ctx context.Context,
	original *domain.Blob,
	mimeType string,
	width int,
) (*domain.Blob, error) {
	variantID := original.ID.Variant(width)

	unlock, err := svc.covers.Lock(ctx, variantID, true)
	if err != nil {
		return nil, fmt.Errorf("lock variant: %w", err)
	}
	defer unlock()

	if svc.covers.Exists(ctx, variantID) {
		cached, err := svc.covers.Fetch(ctx, variantID)
		if err != nil {
			return nil, fmt.Errorf("fetch variant: %w", err)
		}

		return cached, nil
	}

	img, err := decodeImage(original.Bytes(), mimeType)
	if err != nil {
		return nil, fmt.Errorf("decode cover: %w", err)
	}

	if width >= img.Bounds().Dx() {
		return original, nil
	}

	interpol, err := getInterpolatorByName(svc.cfg.Interpolator)
	if err != nil {
		return nil, err
	}

	resized, err := encodeImage(scaleImage(img, width, interpol), mimeType)
	if err != nil {
		return nil, fmt.Errorf("encode variant: %w", err)
	}

	variant := original.Derive(width, resized)

	if err := svc.covers.Store(ctx, variant); err != nil {
		return nil, fmt.Errorf("store variant: %w", err)
	}

	return variant, nil
}

// MaxCoverSize returns the upload limit for cover images in bytes.
func (svc *CatalogService) MaxCoverSize() int64 {
	return svc.cfg.MaxCoverSize
}
