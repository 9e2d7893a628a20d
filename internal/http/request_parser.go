// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data.
// Bodies may be JSON or form-encoded; both end up as the same expense form.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"spendlog/internal/core"
)

var errBodyTooLarge = errors.New("request body too large")

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]interface{}
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once, up to maxBodyBytes, and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	if r.Body == nil {
		return p
	}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if p.err == nil && len(p.body) > maxBodyBytes {
		p.err = errBodyTooLarge
	}
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	body := strings.TrimSpace(string(p.body))
	if body == "" {
		p.formData = url.Values{}
		return nil
	}

	if body[0] == '{' {
		p.jsonData = make(map[string]interface{})
		if err := json.Unmarshal([]byte(body), &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(body)
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// Has reports whether key was sent at all, even with an empty value.
func (p *RequestBodyParser) Has(key string) bool {
	if p.jsonData != nil {
		_, ok := p.jsonData[key]
		return ok
	}
	if p.formData != nil {
		return p.formData.Has(key)
	}
	return false
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue converts an interface{} to string.
func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// sanitizeInput trims and drops control characters other than tab and newlines.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// expenseForm is the raw submission of the add or full edit form.
type expenseForm struct {
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	Description string `json:"description" validate:"required,max=200"`
	Amount      string `json:"amount" validate:"required"`
	Category    string `json:"category" validate:"omitempty,oneof=Food Travel Shopping Bills Entertainment Others"`
}

// expensePatchForm carries only the fields present in a partial edit.
type expensePatchForm struct {
	Date        *string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Description *string `json:"description" validate:"omitempty,max=200"`
	Amount      *string `json:"amount"`
	Category    *string `json:"category" validate:"omitempty,oneof=Food Travel Shopping Bills Entertainment Others"`
}

func parseExpenseForm(p *RequestBodyParser) expenseForm {
	return expenseForm{
		Date:        p.Get("date"),
		Description: p.Get("description"),
		Amount:      normalizeAmount(p.Get("amount")),
		Category:    p.Get("category"),
	}
}

func parseExpensePatchForm(p *RequestBodyParser) expensePatchForm {
	field := func(key string) *string {
		if !p.Has(key) {
			return nil
		}
		v := p.Get(key)
		if key == "amount" {
			v = normalizeAmount(v)
		}
		return &v
	}
	return expensePatchForm{
		Date:        field("date"),
		Description: field("description"),
		Amount:      field("amount"),
		Category:    field("category"),
	}
}

// normalizeAmount accepts a leading currency sign and a decimal comma.
func normalizeAmount(s string) string {
	s = strings.TrimPrefix(strings.TrimSpace(s), "$")
	return strings.ReplaceAll(s, ",", ".")
}

// toInput converts a validated form into a store submission.
func (f expenseForm) toInput() (core.ExpenseInput, error) {
	date, err := core.ParseDate(f.Date)
	if err != nil {
		return core.ExpenseInput{}, err
	}
	amount, err := core.ParseMoney(f.Amount)
	if err != nil {
		return core.ExpenseInput{}, err
	}
	return core.ExpenseInput{
		Date:        date,
		Description: f.Description,
		Amount:      amount,
		Category:    core.Category(f.Category),
	}, nil
}

// toPatch turns a full form into a patch replacing every field. An empty
// category asks the store to re-detect it.
func (f expenseForm) toPatch() (core.ExpensePatch, error) {
	in, err := f.toInput()
	if err != nil {
		return core.ExpensePatch{}, err
	}
	return core.ExpensePatch{
		Date:        &in.Date,
		Description: &in.Description,
		Amount:      &in.Amount,
		Category:    &in.Category,
	}, nil
}

func (f expensePatchForm) toPatch() (core.ExpensePatch, error) {
	var patch core.ExpensePatch
	if f.Date != nil {
		d, err := core.ParseDate(*f.Date)
		if err != nil {
			return patch, err
		}
		patch.Date = &d
	}
	if f.Description != nil {
		desc := *f.Description
		patch.Description = &desc
	}
	if f.Amount != nil {
		m, err := core.ParseMoney(*f.Amount)
		if err != nil {
			return patch, err
		}
		patch.Amount = &m
	}
	if f.Category != nil {
		c := core.Category(*f.Category)
		patch.Category = &c
	}
	return patch, nil
}

// ParseFilter reads the list filter from query parameters: category
// ("all" or empty for every category), start and end as YYYY-MM-DD.
func ParseFilter(q url.Values) (core.Filter, error) {
	f := core.Filter{Category: strings.TrimSpace(q.Get("category"))}
	if f.Category != "" && f.Category != core.CategoryAll && !core.Category(f.Category).IsValid() {
		return core.Filter{}, fmt.Errorf("%w: %q", core.ErrInvalidCategory, f.Category)
	}
	if v := strings.TrimSpace(q.Get("start")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return core.Filter{}, fmt.Errorf("start: %w", err)
		}
		f.Start = d
	}
	if v := strings.TrimSpace(q.Get("end")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return core.Filter{}, fmt.Errorf("end: %w", err)
		}
		f.End = d
	}
	return f, nil
}

// jsonFieldName makes validator report fields by their wire name.
func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return fld.Name
	}
	return name
}

// fieldErrors flattens a validation failure into wire-name keyed messages.
// Conversion errors after validation are reported against the field that
// could not be converted.
func fieldErrors(err error, trans ut.Translator) map[string]string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			out[fe.Field()] = fe.Translate(trans)
		}
		return out
	}
	switch {
	case errors.Is(err, core.ErrInvalidAmount):
		return map[string]string{"amount": "amount must be a positive number"}
	case errors.Is(err, core.ErrInvalidDate):
		return map[string]string{"date": "date must be a valid date in YYYY-MM-DD format"}
	case errors.Is(err, core.ErrEmptyDescription):
		return map[string]string{"description": "description is a required field"}
	case errors.Is(err, core.ErrDescriptionTooLong):
		return map[string]string{"description": fmt.Sprintf("description must be a maximum of %d characters in length", core.MaxDescriptionLen)}
	case errors.Is(err, core.ErrInvalidCategory):
		return map[string]string{"category": "category must be one of the listed categories"}
	}
	return nil
}
