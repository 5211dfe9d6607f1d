package api

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/knockmap/knockmap/internal/roster"
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(validateTargetRow, TargetRow{})
	return v
}

// validateTargetRow rejects channels the targets table does not know.
func validateTargetRow(sl validator.StructLevel) {
	row := sl.Current().Interface().(TargetRow)
	if row.Type != "" && !roster.Channel(row.Type).Valid() {
		sl.ReportError(row.Type, "type", "Type", "channel", "")
	}
}

// validationMessage flattens validator errors into one line.
func validationMessage(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}
