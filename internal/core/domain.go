package core

import (
	"time"
)

// DateLayout is the wire format for expense dates: ISO-8601 in UTC with
// millisecond precision.
const DateLayout = "2006-01-02T15:04:05.000Z07:00"

type (
	// Expense is a single persisted expense record.
	Expense struct {
		ID       string
		Title    string
		Amount   float64
		Date     time.Time
		Category *string // nil when the expense has no category
	}

	// Payload is the normalized, validated subset of expense fields ready for
	// persistence. Nil pointers mean "not supplied".
	Payload struct {
		Title    *string
		Amount   *float64
		Date     *time.Time
		Category *string

		// CategorySet distinguishes an explicit null category from an absent one.
		CategorySet bool
	}
)

// IsEmpty reports whether the payload carries no field at all.
func (p Payload) IsEmpty() bool {
	return p.Title == nil && p.Amount == nil && p.Date == nil && !p.CategorySet
}

// IsComplete reports whether the payload has every field a new expense needs.
func (p Payload) IsComplete() bool {
	return p.Title != nil && p.Amount != nil && p.Date != nil
}

// NewExpense builds the expense a create operation persists under id.
func (p Payload) NewExpense(id string) (Expense, error) {
	if !p.IsComplete() {
		return Expense{}, ErrIncompletePayload
	}
	e := Expense{
		ID:     id,
		Title:  *p.Title,
		Amount: *p.Amount,
		Date:   *p.Date,
	}
	if p.CategorySet && p.Category != nil {
		c := *p.Category
		e.Category = &c
	}
	return e, nil
}

// Apply merges the supplied fields into e. Fields absent from the payload and
// the identifier are left untouched.
func (p Payload) Apply(e Expense) Expense {
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Amount != nil {
		e.Amount = *p.Amount
	}
	if p.Date != nil {
		e.Date = *p.Date
	}
	if p.CategorySet {
		if p.Category == nil {
			e.Category = nil
		} else {
			c := *p.Category
			e.Category = &c
		}
	}
	return e
}

// CategoryOrEmpty returns the category text, or "" when it is null.
func (e Expense) CategoryOrEmpty() string {
	if e.Category == nil {
		return ""
	}
	return *e.Category
}

// FormattedDate renders the expense date in DateLayout.
func (e Expense) FormattedDate() string {
	return e.Date.UTC().Format(DateLayout)
}
