package task

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/hackcamp/core"
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation("submissiontype", func(fl validator.FieldLevel) bool {
		return core.ContainsString(SubmissionTypes, fl.Field().String())
	})
	_ = validate.RegisterValidation("submissionstatus", func(fl validator.FieldLevel) bool {
		return core.ContainsString(SubmissionStatuses, fl.Field().String())
	})

	core.RegisterCustomTranslation(validate, translator, "submissiontype", "{0} must be one of: file, link, any")
	core.RegisterCustomTranslation(validate, translator, "submissionstatus", "{0} must be one of: submitted, accepted, rejected")
}
