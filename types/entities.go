package types

import (
	"time"

	"github.com/splitmate-app/splitmate-sync/errors"
)

// Group represents an expense-sharing group. A group with IsPersonal set is
// never transmitted to the remote store (neither the group document nor its
// membership), though its expenses sync like any other group's.
type Group struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedBy string `json:"createdBy"`
	Currency  string `json:"currency,omitempty"`

	IsPersonal bool `json:"isPersonal"`

	// LastActivityAt advances whenever any expense or membership under the
	// group changes. Remote listeners use it to detect activity in groups
	// they are not subscribed to.
	LastActivityAt time.Time  `json:"lastActivityAt"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	DeletedAt      *time.Time `json:"deletedAt,omitempty"`
}

// Validate checks group fields before any local mutation or enqueue.
func (g *Group) Validate() error {
	if g.Name == "" {
		return errors.ValidationFailed("invalid group", "name is required")
	}
	if g.CreatedBy == "" {
		return errors.ValidationFailed("invalid group", "creator is required")
	}
	return nil
}

// GroupMember is one user's membership row within a group.
type GroupMember struct {
	GroupID   string    `json:"groupId"`
	UserID    string    `json:"userId"`
	Role      string    `json:"role,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Expense represents a shared expense within a group.
type Expense struct {
	ID          string  `json:"id"`
	GroupID     string  `json:"groupId"`
	PaidBy      string  `json:"paidBy"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Category    string  `json:"category,omitempty"`

	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
}

// Validate checks expense fields before any local mutation or enqueue.
func (e *Expense) Validate() error {
	if e.Description == "" {
		return errors.ValidationFailed("invalid expense", "description is required")
	}
	if e.Amount <= 0 {
		return errors.ValidationFailed("invalid expense", "amount must be positive")
	}
	if e.GroupID == "" {
		return errors.ValidationFailed("invalid expense", "group ID is required")
	}
	if e.PaidBy == "" {
		return errors.ValidationFailed("invalid expense", "payer is required")
	}
	return nil
}

// IsDeleted reports whether the expense is soft-deleted locally.
func (e *Expense) IsDeleted() bool {
	return e.DeletedAt != nil
}

// ExpenseShare is one member's share of an expense.
type ExpenseShare struct {
	ExpenseID string    `json:"expenseId"`
	UserID    string    `json:"userId"`
	Amount    float64   `json:"amount"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Validate checks share fields before any local mutation or enqueue.
func (s *ExpenseShare) Validate() error {
	if s.ExpenseID == "" {
		return errors.ValidationFailed("invalid share", "expense ID is required")
	}
	if s.UserID == "" {
		return errors.ValidationFailed("invalid share", "user ID is required")
	}
	if s.Amount < 0 {
		return errors.ValidationFailed("invalid share", "amount must not be negative")
	}
	return nil
}

// Settlement records a directed payment between two members that reduces
// their net imbalance. Recorded settlements feed balance computation.
type Settlement struct {
	ID        string    `json:"id"`
	GroupID   string    `json:"groupId"`
	PayerID   string    `json:"payerId"`
	PayeeID   string    `json:"payeeId"`
	Amount    float64   `json:"amount"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
