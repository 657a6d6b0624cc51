package purchase_request

import (
	"errors"
	"reflect"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"procura/internal/core/apperror"
	"procura/internal/core/id"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		v.RegisterCustomTypeFunc(func(f reflect.Value) any {
			if d, ok := f.Interface().(decimal.Decimal); ok {
				return d.InexactFloat64()
			}
			return nil
		}, decimal.Decimal{})
		validate = v
	})
	return validate
}

// FieldIssue is one failed field in a VALIDATION_FAILURE.
type FieldIssue struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// ValidatePayload checks a payload struct against its validate tags.
func ValidatePayload(payload any) error {
	return toAppError("Invalid request payload", getValidator().Struct(payload))
}

func toAppError(message string, err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperror.NewInvalidArgument(err.Error())
	}
	issues := make([]FieldIssue, 0, len(verrs))
	for _, fe := range verrs {
		issues = append(issues, FieldIssue{Field: fieldPath(fe.Namespace()), Rule: fe.Tag()})
	}
	return apperror.NewValidation(message).WithDetail("fields", issues)
}

// fieldPath drops the root and embedded struct names from a validator
// namespace, leaving the json path.
func fieldPath(ns string) string {
	parts := strings.Split(ns, ".")[1:]
	out := parts[:0]
	for _, p := range parts {
		if p != "" && unicode.IsUpper(rune(p[0])) {
			continue
		}
		out = append(out, p)
	}
	return strings.Join(out, ".")
}

type submission struct {
	PRDate       time.Time        `json:"pr_date" validate:"required"`
	WorkflowID   *id.ID           `json:"workflow_id" validate:"required"`
	DepartmentID *id.ID           `json:"department_id" validate:"required"`
	RequestorID  string           `json:"requestor_id" validate:"required"`
	Lines        []submissionLine `json:"purchase_request_detail" validate:"required,min=1,dive"`
}

type submissionLine struct {
	ProductID       *id.ID          `json:"product_id" validate:"required"`
	LocationID      *id.ID          `json:"location_id" validate:"required"`
	RequestedUnitID *id.ID          `json:"requested_unit_id" validate:"required"`
	RequestedQty    decimal.Decimal `json:"requested_qty" validate:"gt=0"`
}

// ValidateForSubmit reports every field that keeps pr from being submitted.
func ValidateForSubmit(pr *PurchaseRequest) error {
	s := submission{
		PRDate:       pr.PRDate,
		WorkflowID:   pr.WorkflowID,
		DepartmentID: pr.DepartmentID,
		RequestorID:  pr.RequestorID,
		Lines:        make([]submissionLine, len(pr.Lines)),
	}
	for i, l := range pr.Lines {
		s.Lines[i] = submissionLine{
			ProductID:       l.ProductID,
			LocationID:      l.LocationID,
			RequestedUnitID: l.RequestedUnitID,
			RequestedQty:    l.RequestedQty,
		}
	}
	return toAppError("Purchase request is incomplete", getValidator().Struct(s))
}
