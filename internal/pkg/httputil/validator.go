package httputil

import (
	"github.com/bissquit/identity-ledger/internal/pkg/txn"
	"github.com/go-playground/validator/v10"
)

// MaxPasswordBytes is the longest input bcrypt accepts.
const MaxPasswordBytes = 72

// NewValidator returns a validator with the project's custom tags registered:
//
//	txnid      value is a well-formed transaction identifier
//	bcryptmax  value fits in MaxPasswordBytes bytes (max= counts runes)
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("txnid", func(fl validator.FieldLevel) bool {
		return txn.IsValid(fl.Field().String())
	})
	_ = v.RegisterValidation("bcryptmax", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= MaxPasswordBytes
	})
	return v
}
