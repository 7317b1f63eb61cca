package core

import (
	"errors"
	"time"
	"unicode/utf8"
)

const MaxDescriptionLength = 500

const (
	StatusActive   UserStatus = "active"
	StatusInactive UserStatus = "inactive"
)

type (
	UserStatus string

	User struct {
		ID        int64      `json:"id"`
		Name      string     `json:"name"`
		Email     string     `json:"email"`
		Status    UserStatus `json:"status"`
		CreatedAt time.Time  `json:"created_at"`
		UpdatedAt time.Time  `json:"updated_at"`
	}

	Category struct {
		ID        int64     `json:"id"`
		Name      string    `json:"name"`
		CreatedAt time.Time `json:"created_at"`
	}

	// Expense is the joined view returned to callers: the stored row plus
	// the owning user's and category's names.
	Expense struct {
		ID           int64     `json:"id"`
		UserID       int64     `json:"user_id"`
		CategoryID   int64     `json:"category_id"`
		Amount       Amount    `json:"amount"`
		Date         Date      `json:"date"`
		Description  *string   `json:"description"`
		CreatedAt    time.Time `json:"created_at"`
		UpdatedAt    time.Time `json:"updated_at"`
		UserName     string    `json:"user_name"`
		CategoryName string    `json:"category_name"`
	}

	NewExpense struct {
		UserID      int64
		CategoryID  int64
		Amount      Amount
		Date        Date
		Description *string
	}

	// ExpensePatch holds the fields of a partial update. Nil means "leave unchanged".
	ExpensePatch struct {
		UserID      *int64
		CategoryID  *int64
		Amount      *Amount
		Date        *Date
		Description *string
	}

	NewUser struct {
		Name   string
		Email  string
		Status UserStatus
	}
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrExpenseNotFound  = errors.New("expense not found")
	ErrNoFieldsToUpdate = errors.New("no fields to update")
	ErrEmailTaken       = errors.New("email already registered")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidDate      = errors.New("invalid date")
)

func (s UserStatus) IsValid() bool {
	return s == StatusActive || s == StatusInactive
}

// Validate checks the invariants of a new expense and reports every
// offending field at once.
func (e NewExpense) Validate() error {
	var v ValidationError
	if e.UserID < 1 {
		v.Add("user_id", MsgUserIDInvalid)
	}
	if e.CategoryID < 1 {
		v.Add("category_id", MsgCategoryIDInvalid)
	}
	if err := e.Amount.Validate(); err != nil {
		v.Add("amount", MsgAmountInvalid)
	}
	if e.Date.IsZero() {
		v.Add("date", MsgDateInvalid)
	}
	if !descriptionFits(e.Description) {
		v.Add("description", MsgDescriptionTooLong)
	}
	return v.OrNil()
}

// IsEmpty reports whether the patch would change nothing.
func (p ExpensePatch) IsEmpty() bool {
	return p.UserID == nil && p.CategoryID == nil && p.Amount == nil && p.Date == nil && p.Description == nil
}

// Validate checks only the fields that are present.
func (p ExpensePatch) Validate() error {
	var v ValidationError
	if p.UserID != nil && *p.UserID < 1 {
		v.Add("user_id", MsgUserIDInvalid)
	}
	if p.CategoryID != nil && *p.CategoryID < 1 {
		v.Add("category_id", MsgCategoryIDInvalid)
	}
	if p.Amount != nil {
		if err := p.Amount.Validate(); err != nil {
			v.Add("amount", MsgAmountInvalid)
		}
	}
	if p.Date != nil && p.Date.IsZero() {
		v.Add("date", MsgDateInvalid)
	}
	if !descriptionFits(p.Description) {
		v.Add("description", MsgDescriptionTooLong)
	}
	return v.OrNil()
}

// Apply returns e with the patch's fields copied over it.
func (p ExpensePatch) Apply(e Expense) Expense {
	if p.UserID != nil {
		e.UserID = *p.UserID
	}
	if p.CategoryID != nil {
		e.CategoryID = *p.CategoryID
	}
	if p.Amount != nil {
		e.Amount = *p.Amount
	}
	if p.Date != nil {
		e.Date = *p.Date
	}
	if p.Description != nil {
		d := *p.Description
		e.Description = &d
	}
	return e
}

func (u NewUser) Validate() error {
	var v ValidationError
	if u.Name == "" {
		v.Add("name", "Name is required")
	}
	if u.Email == "" {
		v.Add("email", "Email is required")
	}
	if u.Status != "" && !u.Status.IsValid() {
		v.Add("status", "Status must be either active or inactive")
	}
	return v.OrNil()
}

func descriptionFits(d *string) bool {
	return d == nil || utf8.RuneCountInString(*d) <= MaxDescriptionLength
}
