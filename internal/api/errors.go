package api

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/heart-intake-server/internal/domain"
	"github.com/heart-intake-server/internal/middleware"
)

// StatusFor maps a workflow error to its HTTP status.
func StatusFor(err error) int {
	switch domain.ErrorCode(err) {
	case domain.CodeMalformedInput, domain.CodeStorage:
		return http.StatusBadRequest
	case domain.CodeConflict:
		return http.StatusConflict
	case domain.CodeNotFound, domain.CodeEmptyCollection:
		return http.StatusNotFound
	case domain.CodeRequestTimeout:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as an APIError. The cause has already been logged by
// the workflow and never reaches the body.
func writeError(c *gin.Context, err error) {
	c.JSON(StatusFor(err), domain.NewAPIError(
		domain.ErrorCode(err),
		domain.UserMessage(err),
		c.GetString(middleware.CorrelationIDKey),
	))
}

// bindingError converts a gin binding failure into malformed input.
func bindingError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return domain.NewValidationError(verrs[0].Field(), "field is required", nil)
	}
	return domain.NewValidationError("body", "not a valid patient submission", nil)
}

// submissionFields lists the form keys of a patient submission.
var submissionFields = append([]string{"name"}, domain.FeatureNames[:]...)

// emptyFormField rejects form bodies with a blank required field. gin maps an
// empty form value to the zero value, which would pass as a real measurement.
func emptyFormField(c *gin.Context) error {
	switch c.ContentType() {
	case binding.MIMEPOSTForm, binding.MIMEMultipartPOSTForm:
	default:
		return nil
	}
	for _, field := range submissionFields {
		if strings.TrimSpace(c.PostForm(field)) == "" {
			return domain.NewValidationError(field, "field is required", nil)
		}
	}
	return nil
}

var registerTagNames sync.Once

// useJSONFieldNames makes validator report fields by their json tag.
func useJSONFieldNames() {
	registerTagNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
}
