package application

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/hackcamp/core"
)

var (
	appStatusTag  = "appstatus"
	appStatusText = "{0} must be one of: pending, approved, rejected"
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(appStatusTag, func(fl validator.FieldLevel) bool {
		return core.ContainsString(Statuses, fl.Field().String())
	})
	core.RegisterCustomTranslation(validate, translator, appStatusTag, appStatusText)
}
