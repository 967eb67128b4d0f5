package draft

import "github.com/ManuelReschke/Scribefox/app/models"

// RequiredFieldCheck lists the fields a draft still lacks for finalization.
type RequiredFieldCheck func(d *models.Draft) []string

// StyleRequiredFields: at least one non-empty sample, one topic and a name.
func StyleRequiredFields(d *models.Draft) []string {
	var missing []string
	if len(d.NonEmptySamples()) == 0 {
		missing = append(missing, "samples")
	}
	if len(d.Topics) == 0 {
		missing = append(missing, "topics")
	}
	if d.NameValue() == "" {
		missing = append(missing, "name")
	}
	return missing
}

// OnboardingRequiredFields: name, email, language, one delivery day and one sample.
func OnboardingRequiredFields(d *models.Draft) []string {
	var missing []string
	if d.NameValue() == "" {
		missing = append(missing, "name")
	}
	if d.EmailValue() == "" {
		missing = append(missing, "email")
	}
	if d.LanguageValue() == "" {
		missing = append(missing, "language")
	}
	if len(d.DeliveryDays) == 0 {
		missing = append(missing, "delivery_days")
	}
	if len(d.NonEmptySamples()) == 0 {
		missing = append(missing, "samples")
	}
	return missing
}

// RequiredFieldsFor returns the completion policy of a draft kind.
func RequiredFieldsFor(kind string) (RequiredFieldCheck, bool) {
	switch kind {
	case models.DraftKindArticleStyle:
		return StyleRequiredFields, true
	case models.DraftKindOnboarding:
		return OnboardingRequiredFields, true
	default:
		return nil, false
	}
}
