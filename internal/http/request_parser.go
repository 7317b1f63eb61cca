// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data.
// JSON bodies are decoded into raw fields first so that a missing field, a
// null and a value of the wrong type each get their own message.
package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"expenses/internal/core"
)

// MaxBodyBytes caps request bodies.
const MaxBodyBytes = 1 << 20

var (
	errInvalidJSON  = errors.New("invalid JSON body")
	errBodyTooLarge = errors.New("request body too large")
)

var minAmount = decimal.New(1, -core.Scale)

// expensePayload is the body of create and update requests.
type expensePayload struct {
	UserID      json.RawMessage `json:"user_id"`
	CategoryID  json.RawMessage `json:"category_id"`
	Amount      json.RawMessage `json:"amount"`
	Date        json.RawMessage `json:"date"`
	Description json.RawMessage `json:"description"`
}

// decodeJSON reads a single JSON object into dst. An empty body decodes as
// {}. Unknown fields are reported as a validation error.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		return nil
	default:
		return classifyDecodeError(err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return errBodyTooLarge
		}
		return errInvalidJSON
	}
	return nil
}

func classifyDecodeError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return errBodyTooLarge
	}
	// encoding/json has no typed error for unknown fields.
	if field, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
		var v core.ValidationError
		v.Add(strings.Trim(field, `"`), "Unknown field")
		return &v
	}
	return errInvalidJSON
}

// fieldReader converts raw JSON fields, collecting one message per bad field.
type fieldReader struct {
	v core.ValidationError
}

func isAbsent(raw json.RawMessage) bool {
	return len(raw) == 0
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

func isBlank(raw json.RawMessage) bool {
	s := string(bytes.TrimSpace(raw))
	return s == "" || s == "null" || s == `""`
}

// scalarText returns the text of a JSON number or string.
func scalarText(raw json.RawMessage) (string, bool) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	return "", false
}

func parsePositiveInt(text string) (int64, bool) {
	n, err := strconv.ParseInt(text, 10, 64)
	return n, err == nil && n >= 1
}

func (fr *fieldReader) positiveInt(field string, raw json.RawMessage, required bool, requiredMsg, invalidMsg string) *int64 {
	if isAbsent(raw) && !required {
		return nil
	}
	if required && isBlank(raw) {
		fr.v.Add(field, requiredMsg)
		return nil
	}
	text, ok := scalarText(raw)
	if !ok {
		fr.v.Add(field, invalidMsg)
		return nil
	}
	n, ok := parsePositiveInt(text)
	if !ok {
		fr.v.Add(field, invalidMsg)
		return nil
	}
	return &n
}

func (fr *fieldReader) amount(raw json.RawMessage, required bool) *core.Amount {
	if isAbsent(raw) && !required {
		return nil
	}
	if required && isBlank(raw) {
		fr.v.Add("amount", core.MsgAmountRequired)
		return nil
	}
	text, ok := scalarText(raw)
	if !ok {
		fr.v.Add("amount", core.MsgAmountInvalid)
		return nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(text))
	if err != nil || d.LessThan(minAmount) {
		fr.v.Add("amount", core.MsgAmountInvalid)
		return nil
	}
	a, err := core.ParseAmount(text)
	if err != nil {
		fr.v.Add("amount", core.MsgAmountInvalid)
		return nil
	}
	return &a
}

func (fr *fieldReader) date(raw json.RawMessage, required bool) *core.Date {
	if isAbsent(raw) && !required {
		return nil
	}
	if required && isBlank(raw) {
		fr.v.Add("date", core.MsgDateRequired)
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		fr.v.Add("date", core.MsgDateInvalid)
		return nil
	}
	d, err := core.ParseDate(strings.TrimSpace(s))
	if err != nil {
		fr.v.Add("date", core.MsgDateInvalid)
		return nil
	}
	return &d
}

func (fr *fieldReader) description(raw json.RawMessage) *string {
	if isAbsent(raw) {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || isNull(raw) {
		fr.v.Add("description", core.MsgDescriptionInvalid)
		return nil
	}
	s = sanitizeInput(s)
	if utf8.RuneCountInString(s) > core.MaxDescriptionLength {
		fr.v.Add("description", core.MsgDescriptionTooLong)
		return nil
	}
	return &s
}

// ParseNewExpense decodes a create request. Every field but description is required.
func ParseNewExpense(w http.ResponseWriter, r *http.Request) (core.NewExpense, error) {
	var p expensePayload
	if err := decodeJSON(w, r, &p); err != nil {
		return core.NewExpense{}, err
	}

	var fr fieldReader
	userID := fr.positiveInt("user_id", p.UserID, true, core.MsgUserIDRequired, core.MsgUserIDInvalid)
	categoryID := fr.positiveInt("category_id", p.CategoryID, true, core.MsgCategoryIDRequired, core.MsgCategoryIDInvalid)
	amount := fr.amount(p.Amount, true)
	date := fr.date(p.Date, true)
	description := fr.description(p.Description)
	if err := fr.v.OrNil(); err != nil {
		return core.NewExpense{}, err
	}

	return core.NewExpense{
		UserID:      *userID,
		CategoryID:  *categoryID,
		Amount:      *amount,
		Date:        *date,
		Description: description,
	}, nil
}

// ParseExpensePatch decodes an update request. Absent fields stay unchanged;
// a present field must be valid, null included.
func ParseExpensePatch(w http.ResponseWriter, r *http.Request) (core.ExpensePatch, error) {
	var p expensePayload
	if err := decodeJSON(w, r, &p); err != nil {
		return core.ExpensePatch{}, err
	}

	var fr fieldReader
	patch := core.ExpensePatch{
		UserID:      fr.positiveInt("user_id", p.UserID, false, core.MsgUserIDRequired, core.MsgUserIDInvalid),
		CategoryID:  fr.positiveInt("category_id", p.CategoryID, false, core.MsgCategoryIDRequired, core.MsgCategoryIDInvalid),
		Amount:      fr.amount(p.Amount, false),
		Date:        fr.date(p.Date, false),
		Description: fr.description(p.Description),
	}
	if err := fr.v.OrNil(); err != nil {
		return core.ExpensePatch{}, err
	}
	return patch, nil
}

// ParseExpenseID reads the {id} path value.
func ParseExpenseID(r *http.Request) (int64, error) {
	id, ok := parsePositiveInt(r.PathValue("id"))
	if !ok {
		var v core.ValidationError
		v.Add("id", core.MsgExpenseIDInvalid)
		return 0, &v
	}
	return id, nil
}

// ParseExpenseQuery reads the listing filters and page. A filter parameter
// that is present must be valid, even when empty. Bad page or limit values
// fall back to the defaults.
func ParseExpenseQuery(query url.Values) (core.ExpenseFilter, core.PageRequest, error) {
	var (
		f core.ExpenseFilter
		v core.ValidationError
	)

	if vals, ok := query["user_id"]; ok {
		if id, ok := parsePositiveInt(strings.TrimSpace(vals[0])); ok {
			f.UserID = &id
		} else {
			v.Add("user_id", core.MsgUserIDInvalid)
		}
	}
	if vals, ok := query["category_id"]; ok {
		if id, ok := parsePositiveInt(strings.TrimSpace(vals[0])); ok {
			f.CategoryID = &id
		} else {
			v.Add("category_id", core.MsgCategoryIDInvalid)
		}
	}
	if vals, ok := query["start_date"]; ok {
		if d, err := core.ParseDate(strings.TrimSpace(vals[0])); err == nil {
			f.StartDate = &d
		} else {
			v.Add("start_date", core.MsgStartDateInvalid)
		}
	}
	if vals, ok := query["end_date"]; ok {
		if d, err := core.ParseDate(strings.TrimSpace(vals[0])); err == nil {
			f.EndDate = &d
		} else {
			v.Add("end_date", core.MsgEndDateInvalid)
		}
	}

	if err := v.OrNil(); err != nil {
		return core.ExpenseFilter{}, core.PageRequest{}, err
	}
	return f, core.ParsePageRequest(query.Get("page"), query.Get("limit")), nil
}

// sanitizeInput drops control characters other than tab and newlines.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}
