package book

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"

	"github.com/mkrupp/library/internal/domain"
	"github.com/mkrupp/library/internal/infra/database"
	"github.com/mkrupp/library/internal/infra/logging"
)

const tableBooks = "books"

//nolint:gochecknoglobals
var bookColumns = []any{
	"id", "title", "author", "quantity", "publish_date",
	"cover_id", "cover_type", "is_deleted", "created_at", "updated_at",
}

//nolint:gochecknoglobals
var live = goqu.C("is_deleted").IsFalse()

// SQLBookRepository implements Repository on the shared SQL store.
type SQLBookRepository struct {
	db  *database.DB
	log logging.Logger
	now func() time.Time
}

var _ Repository = (*SQLBookRepository)(nil)

// SQLBookRepositoryFactory implements RepositoryFactory.
func SQLBookRepositoryFactory(db *database.DB) Repository {
	return NewSQLBookRepository(db)
}

func NewSQLBookRepository(db *database.DB) *SQLBookRepository {
	return &SQLBookRepository{
		db:  db,
		log: logging.GetLogger("repo.book.sql"),
		now: time.Now,
	}
}

func (r *SQLBookRepository) selectBooks() *goqu.SelectDataset {
	return r.db.Builder().From(tableBooks).Select(bookColumns...)
}

func (r *SQLBookRepository) List(ctx context.Context, q database.Querier) ([]domain.Book, error) {
	return r.selectMany(ctx, q, r.selectBooks().Where(live))
}

func (r *SQLBookRepository) Search(ctx context.Context, q database.Querier, query domain.BookQuery) ([]domain.Book, error) {
	where := []exp.Expression{live}

	if term := strings.TrimSpace(query.Title); term != "" {
		where = append(where, contains("title", term))
	}

	if term := strings.TrimSpace(query.Author); term != "" {
		where = append(where, contains("author", term))
	}

	return r.selectMany(ctx, q, r.selectBooks().Where(where...))
}

//nolint:gochecknoglobals
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// contains matches term as a literal, case-insensitive substring; LIKE
// wildcards in term are escaped.
func contains(column, term string) exp.Expression {
	pattern := "%" + likeEscaper.Replace(strings.ToLower(term)) + "%"

	return goqu.L(`LOWER(?) LIKE ? ESCAPE '\'`, goqu.C(column), pattern)
}

func (r *SQLBookRepository) Get(ctx context.Context, q database.Querier, id int64) (*domain.Book, error) {
	return r.selectOne(ctx, q, r.selectBooks().Where(goqu.C("id").Eq(id), live))
}

func (r *SQLBookRepository) GetForUpdate(ctx context.Context, tx *database.Tx, id int64) (*domain.Book, error) {
	return r.selectOne(ctx, tx, r.db.ForUpdate(r.selectBooks().Where(goqu.C("id").Eq(id))))
}

func (r *SQLBookRepository) selectOne(ctx context.Context, q database.Querier, ds *goqu.SelectDataset) (*domain.Book, error) {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var book domain.Book
	if err := sqlx.GetContext(ctx, q, &book, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBookNotFound
		}

		return nil, domain.StoreError("query book", err)
	}

	return &book, nil
}

func (r *SQLBookRepository) selectMany(ctx context.Context, q database.Querier, ds *goqu.SelectDataset) ([]domain.Book, error) {
	query, args, err := ds.Order(goqu.C("id").Asc()).Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	books := []domain.Book{}
	if err := sqlx.SelectContext(ctx, q, &books, query, args...); err != nil {
		return nil, domain.StoreError("query books", err)
	}

	return books, nil
}

func (r *SQLBookRepository) Create(ctx context.Context, tx *database.Tx, book *domain.Book) error {
	now := r.now().Unix()

	id, err := r.db.InsertReturningID(ctx, tx, r.db.Builder().Insert(tableBooks).Rows(goqu.Record{
		"title":        book.Title,
		"author":       book.Author,
		"quantity":     book.Quantity,
		"publish_date": book.PublishDate,
		"created_at":   now,
		"updated_at":   now,
	}))
	if err != nil {
		return domain.StoreError("insert book", err)
	}

	book.ID, book.CreatedAt, book.UpdatedAt = id, now, now

	r.log.DebugContext(ctx, "book created", "id", id)

	return nil
}

func (r *SQLBookRepository) Update(ctx context.Context, tx *database.Tx, id int64, patch domain.BookPatch) error {
	record := goqu.Record(patch.Fields())
	record["updated_at"] = r.now().Unix()

	return r.updateOne(ctx, tx, "update book", record, goqu.C("id").Eq(id), live)
}

func (r *SQLBookRepository) SoftDelete(ctx context.Context, tx *database.Tx, id int64) error {
	return r.updateOne(ctx, tx, "delete book", goqu.Record{
		"is_deleted": true,
		"updated_at": r.now().Unix(),
	}, goqu.C("id").Eq(id), live)
}

func (r *SQLBookRepository) SetCover(
	ctx context.Context,
	tx *database.Tx,
	id int64,
	coverID domain.BlobID,
	coverType string,
) error {
	return r.updateOne(ctx, tx, "set cover", goqu.Record{
		"cover_id":   string(coverID),
		"cover_type": coverType,
		"updated_at": r.now().Unix(),
	}, goqu.C("id").Eq(id), live)
}

// TakeCopy relies on the guarded UPDATE alone; a concurrent borrower that
// got the last copy first leaves zero rows to update.
func (r *SQLBookRepository) TakeCopy(ctx context.Context, tx *database.Tx, id int64) error {
	err := r.updateOne(ctx, tx, "take copy", goqu.Record{
		"quantity":   goqu.L("quantity - 1"),
		"updated_at": r.now().Unix(),
	}, goqu.C("id").Eq(id), goqu.C("quantity").Gt(0), live)
	if errors.Is(err, domain.ErrBookNotFound) {
		return domain.ErrUnavailable
	}

	return err
}

func (r *SQLBookRepository) ReturnCopy(ctx context.Context, tx *database.Tx, id int64) error {
	return r.updateOne(ctx, tx, "return copy", goqu.Record{
		"quantity":   goqu.L("quantity + 1"),
		"updated_at": r.now().Unix(),
	}, goqu.C("id").Eq(id))
}

func (r *SQLBookRepository) updateOne(
	ctx context.Context,
	q database.Querier,
	op string,
	record goqu.Record,
	where ...exp.Expression,
) error {
	query, args, err := r.db.Builder().Update(tableBooks).Set(record).Where(where...).Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build %s: %w", op, err)
	}

	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return domain.StoreError(op, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return domain.StoreError(op, err)
	}

	if affected == 0 {
		return domain.ErrBookNotFound
	}

	return nil
}
