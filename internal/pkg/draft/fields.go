package draft

import (
	"strings"

	"github.com/ManuelReschke/Scribefox/app/models"
)

// Fields is a partial draft update. A nil slice or pointer means "absent":
// the stored value is left untouched. A present value replaces the stored
// one entirely, lists included.
type Fields struct {
	Samples      []string
	Topics       []string
	Name         *string
	Language     *string
	DeliveryDays []string
	Email        *string
}

// IsEmpty reports whether no field is present.
func (f Fields) IsEmpty() bool {
	return len(f.columns()) == 0
}

// patch returns the normalized values of the present fields on a Draft and
// the column names to write.
func (f Fields) patch() (*models.Draft, []string) {
	d := &models.Draft{}
	f.applyTo(d)
	return d, f.columns()
}

func (f Fields) applyTo(d *models.Draft) {
	if f.Samples != nil {
		d.Samples = append([]string{}, f.Samples...)
	}
	if f.Topics != nil {
		d.Topics = uniqueTrimmed(f.Topics)
	}
	if f.Name != nil {
		d.Name = trimmedPtr(*f.Name)
	}
	if f.Language != nil {
		d.Language = trimmedPtr(strings.ToLower(*f.Language))
	}
	if f.DeliveryDays != nil {
		d.DeliveryDays = orderedDays(f.DeliveryDays)
	}
	if f.Email != nil {
		d.Email = trimmedPtr(strings.ToLower(*f.Email))
	}
}

func (f Fields) columns() []string {
	var cols []string
	if f.Samples != nil {
		cols = append(cols, "samples")
	}
	if f.Topics != nil {
		cols = append(cols, "topics")
	}
	if f.Name != nil {
		cols = append(cols, "name")
	}
	if f.Language != nil {
		cols = append(cols, "language")
	}
	if f.DeliveryDays != nil {
		cols = append(cols, "delivery_days")
	}
	if f.Email != nil {
		cols = append(cols, "email")
	}
	return cols
}

func trimmedPtr(s string) *string {
	v := strings.TrimSpace(s)
	return &v
}

// uniqueTrimmed drops blanks and case-insensitive duplicates, keeping first-seen order.
func uniqueTrimmed(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}

// orderedDays returns the known weekday codes of in, Monday first.
func orderedDays(in []string) []string {
	selected := make(map[string]bool, len(in))
	for _, v := range in {
		selected[strings.ToLower(strings.TrimSpace(v))] = true
	}
	out := make([]string, 0, len(selected))
	for _, code := range models.DeliveryDayCodes {
		if selected[code] {
			out = append(out, code)
		}
	}
	return out
}
