package domain

import (
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// PublishDateLayout is the wire and storage format of Book.PublishDate.
const PublishDateLayout = time.DateOnly

// Book is a catalog record. Quantity counts the copies currently on the shelf.
type Book struct {
	ID          int64  `db:"id"           json:"id"`
	Title       string `db:"title"        json:"title"`
	Author      string `db:"author"       json:"author"`
	Quantity    int    `db:"quantity"     json:"qty"`
	PublishDate string `db:"publish_date" json:"publish_date"`
	CoverID     BlobID `db:"cover_id"     json:"cover_id,omitempty"`
	CoverType   string `db:"cover_type"   json:"-"`
	Deleted     bool   `db:"is_deleted"   json:"-"`
	CreatedAt   int64  `db:"created_at"   json:"created_at"`
	UpdatedAt   int64  `db:"updated_at"   json:"updated_at"`
}

// Available reports whether at least one copy can be lent.
func (b Book) Available() bool {
	return b.Quantity > 0 && !b.Deleted
}

// HasCover reports whether a cover image is attached.
func (b Book) HasCover() bool {
	return b.CoverID != ""
}

// MarshalJSON adds the derived "available" flag.
func (b Book) MarshalJSON() ([]byte, error) {
	type book Book

	//nolint:wrapcheck
	return jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(struct {
		book
		Available bool `json:"available"`
	}{book(b), b.Available()})
}

// BookPatch maps catalog field names to optional new values. Only non-nil
// entries are applied; the zero value changes nothing.
type BookPatch struct {
	Title       *string `json:"title"`
	Author      *string `json:"author"`
	Quantity    *int    `json:"qty"`
	PublishDate *string `json:"publish_date"`
}

// Empty reports whether the patch carries no field at all.
func (p BookPatch) Empty() bool {
	return p.Title == nil && p.Author == nil && p.Quantity == nil && p.PublishDate == nil
}

// Validate checks every present entry.
func (p BookPatch) Validate() error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return fmt.Errorf("%w: title must not be empty", ErrBadRequest)
	}

	if p.Author != nil && strings.TrimSpace(*p.Author) == "" {
		return fmt.Errorf("%w: author must not be empty", ErrBadRequest)
	}

	if p.Quantity != nil && *p.Quantity < 0 {
		return fmt.Errorf("%w: qty must not be negative", ErrBadRequest)
	}

	if p.PublishDate != nil {
		if _, err := time.Parse(PublishDateLayout, *p.PublishDate); err != nil {
			return fmt.Errorf("%w: publish_date must be YYYY-MM-DD", ErrBadRequest)
		}
	}

	return nil
}

// Complete checks that every field required to create a book is present and valid.
func (p BookPatch) Complete() error {
	var missing []string

	if p.Title == nil {
		missing = append(missing, "title")
	}

	if p.Author == nil {
		missing = append(missing, "author")
	}

	if p.Quantity == nil {
		missing = append(missing, "qty")
	}

	if p.PublishDate == nil {
		missing = append(missing, "publish_date")
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrBadRequest, strings.Join(missing, ", "))
	}

	return p.Validate()
}

// Fields returns the present entries keyed by column name.
func (p BookPatch) Fields() map[string]any {
	fields := make(map[string]any, 4)

	if p.Title != nil {
		fields["title"] = strings.TrimSpace(*p.Title)
	}

	if p.Author != nil {
		fields["author"] = strings.TrimSpace(*p.Author)
	}

	if p.Quantity != nil {
		fields["quantity"] = *p.Quantity
	}

	if p.PublishDate != nil {
		fields["publish_date"] = *p.PublishDate
	}

	return fields
}

// Apply returns book with the present entries of the patch applied.
func (p BookPatch) Apply(book Book) Book {
	if p.Title != nil {
		book.Title = strings.TrimSpace(*p.Title)
	}

	if p.Author != nil {
		book.Author = strings.TrimSpace(*p.Author)
	}

	if p.Quantity != nil {
		book.Quantity = *p.Quantity
	}

	if p.PublishDate != nil {
		book.PublishDate = *p.PublishDate
	}

	return book
}

// BookQuery holds optional partial-match search terms, AND-combined.
type BookQuery struct {
	Title  string
	Author string
}
