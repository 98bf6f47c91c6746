package handlers

import (
	"net/http"

	apperrors "github.com/pratik-mahalle/skuprice/internal/pkg/errors"
	"github.com/pratik-mahalle/skuprice/internal/pkg/utils"
	"github.com/pratik-mahalle/skuprice/internal/pkg/validator"
)

// validate runs struct validation and writes a 400 response on failure. It
// reports whether the request may proceed.
func validate(w http.ResponseWriter, v *validator.Validator, req interface{}) bool {
	if errs := v.Validate(req); len(errs) > 0 {
		utils.WriteError(w, apperrors.ValidationError("Invalid query parameters", errs))
		return false
	}
	return true
}
