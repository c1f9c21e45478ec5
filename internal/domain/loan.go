package domain

import "fmt"

// LoanStatus is the lifecycle state of a loan.
type LoanStatus string

const (
	LoanBorrowed LoanStatus = "borrowed"
	LoanReturned LoanStatus = "returned"
)

// ParseLoanStatus validates a status filter. The empty string means "any".
func ParseLoanStatus(s string) (LoanStatus, error) {
	switch status := LoanStatus(s); status {
	case "", LoanBorrowed, LoanReturned:
		return status, nil
	default:
		return "", fmt.Errorf("%w: unknown loan status %q", ErrBadRequest, s)
	}
}

// Loan records one copy of a book lent to a user. At most one loan per
// (UserID, BookID) may be LoanBorrowed at any time.
type Loan struct {
	ID         int64      `db:"id"          json:"id"`
	UserID     int64      `db:"user_id"     json:"user_id"`
	BookID     int64      `db:"book_id"     json:"book_id"`
	Status     LoanStatus `db:"status"      json:"status"`
	BorrowedAt int64      `db:"borrowed_at" json:"borrowed_at"`
	ReturnedAt *int64     `db:"returned_at" json:"returned_at,omitempty"`
}

// Active reports whether the loan is still open.
func (l Loan) Active() bool {
	return l.Status == LoanBorrowed
}

// LoanResponse acknowledges a borrow or return.
type LoanResponse struct {
	Message string `json:"message"`
	Loan    Loan   `json:"loan"`
}
