package api

import (
	"github.com/go-playground/validator/v10"

	"stellar-wallet-core/internal/domain"
	"stellar-wallet-core/internal/stellar"
)

// Validation tags registered on top of the library defaults.
const (
	tagAccount  = "stellar_account"
	tagContract = "stellar_contract"
	tagNetwork  = "network"
)

type requestValidator struct {
	validate *validator.Validate
}

func newValidator() *requestValidator {
	v := validator.New()
	_ = v.RegisterValidation(tagAccount, func(fl validator.FieldLevel) bool {
		return stellar.ValidatePublicKey(fl.Field().String()) == nil
	})
	_ = v.RegisterValidation(tagContract, func(fl validator.FieldLevel) bool {
		return stellar.IsContractID(fl.Field().String())
	})
	_ = v.RegisterValidation(tagNetwork, func(fl validator.FieldLevel) bool {
		_, err := domain.ParseNetwork(fl.Field().String())
		return err == nil
	})
	return &requestValidator{validate: v}
}

// Validate implements echo.Validator.
func (v *requestValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}
