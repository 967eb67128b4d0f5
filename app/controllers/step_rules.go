package controllers

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ManuelReschke/Scribefox/app/models"
	"github.com/ManuelReschke/Scribefox/internal/pkg/apperr"
	"github.com/ManuelReschke/Scribefox/internal/pkg/draft"
)

// stepRequest is the body of a wizard step. Only the fields owned by the
// submitted step are read; anything else in the body is ignored.
type stepRequest struct {
	DraftID      string   `json:"draft_id"`
	Samples      []string `json:"samples"`
	Topics       []string `json:"topics"`
	Name         *string  `json:"name"`
	Language     *string  `json:"language"`
	DeliveryDays []string `json:"delivery_days"`
	Email        *string  `json:"email"`
}

type fieldRule struct {
	Field string
	Tag   string
}

// stepRules lists, per draft kind and step number, the fields a step owns
// and the validator tags they must satisfy.
var stepRules = map[string]map[int][]fieldRule{
	models.DraftKindArticleStyle: {
		1: {{"samples", "required,has_text,dive,max=20000"}},
		2: {{"topics", "required,has_text,dive,max=120"}},
		3: {{"name", "required,notblank,max=150"}, {"language", "omitempty,max=16"}},
	},
	models.DraftKindOnboarding: {
		1: {{"name", "required,notblank,max=150"}, {"email", "required,email,max=200"}, {"language", "required,notblank,max=16"}},
		2: {{"delivery_days", "required,min=1,dive,oneof=mon tue wed thu fri sat sun"}},
		3: {{"samples", "required,has_text,dive,max=20000"}},
	},
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("has_text", hasText)
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// hasText accepts a string list with at least one non-blank entry.
func hasText(fl validator.FieldLevel) bool {
	items, ok := fl.Field().Interface().([]string)
	if !ok {
		return false
	}
	for _, s := range items {
		if strings.TrimSpace(s) != "" {
			return true
		}
	}
	return false
}

func (r *stepRequest) value(field string) (interface{}, bool) {
	switch field {
	case "samples":
		return r.Samples, r.Samples != nil
	case "topics":
		return r.Topics, r.Topics != nil
	case "delivery_days":
		return lowerAll(r.DeliveryDays), r.DeliveryDays != nil
	case "name":
		return deref(r.Name), r.Name != nil
	case "language":
		return deref(r.Language), r.Language != nil
	case "email":
		return strings.TrimSpace(deref(r.Email)), r.Email != nil
	default:
		return nil, false
	}
}

// stepFields validates the fields owned by step and returns them as a
// partial draft update. Invalid fields are reported together.
func stepFields(kind string, step int, r *stepRequest) (draft.Fields, error) {
	rules, ok := stepRules[kind][step]
	if !ok {
		return draft.Fields{}, apperr.Validation("controllers.SaveStep", "step")
	}

	var invalid []string
	var f draft.Fields
	for _, rule := range rules {
		val, present := r.value(rule.Field)
		if !present && strings.HasPrefix(rule.Tag, "omitempty") {
			continue
		}
		if err := validate.Var(val, rule.Tag); err != nil {
			invalid = append(invalid, rule.Field)
			continue
		}
		switch rule.Field {
		case "samples":
			f.Samples = r.Samples
		case "topics":
			f.Topics = r.Topics
		case "delivery_days":
			f.DeliveryDays = r.DeliveryDays
		case "name":
			f.Name = r.Name
		case "language":
			f.Language = r.Language
		case "email":
			f.Email = r.Email
		}
	}
	if len(invalid) > 0 {
		return draft.Fields{}, apperr.Validation("controllers.SaveStep", invalid...)
	}
	return f, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.ToLower(strings.TrimSpace(v))
	}
	return out
}

// invalidFields lists the json names of the fields a struct validation rejected.
func invalidFields(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	seen := make(map[string]bool, len(verrs))
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		name := fe.Field()
		if i := strings.IndexByte(name, '['); i >= 0 {
			name = name[:i]
		}
		if !seen[name] {
			seen[name] = true
			fields = append(fields, name)
		}
	}
	return fields
}
