package ledgersync

import (
	"strconv"
	"strings"

	"github.com/ManuelReschke/Scribefox/app/models"
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02 15:04:05"
	exampleColumns  = 3
)

// MainHeader is the header of the main ledger. Downstream consumers depend on
// this exact column order.
var MainHeader = []string{
	"Sheet Name", "Customer Name", "Customer Email", "Language",
	"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday",
	"Paywall Status", "End Of Membership", "Created At",
	"Example 1", "Example 2", "Example 3",
}

// StyleHeader is the header row of every customer sub-ledger.
var StyleHeader = []string{"Style Name", "Language", "Topics", "Example 1", "Example 2", "Example 3", "Created At"}

// MaxSheetName is the longest sheet title every provider accepts (Excel's limit).
const MaxSheetName = 31

var sheetNameReplacer = strings.NewReplacer(":", " ", "\\", " ", "/", " ", "?", " ", "*", " ", "[", "(", "]", ")", "'", "")

// SheetName derives the customer's sub-ledger name from the profile. The
// " #<id>" suffix always survives truncation so two customers never share a sheet.
func SheetName(p *models.OnboardingProfile) string {
	suffix := " #" + strconv.FormatUint(uint64(p.ID), 10)
	name := strings.TrimSpace(sheetNameReplacer.Replace(p.Name))
	if name == "" {
		name = "Customer"
	}
	if room := MaxSheetName - len([]rune(suffix)); len([]rune(name)) > room {
		name = strings.TrimSpace(string([]rune(name)[:room]))
	}
	return name + suffix
}

// MainRow projects a profile and its subscription (may be nil) onto the
// 17-column main ledger record.
func MainRow(p *models.OnboardingProfile, sub *models.BillingSubscription) []string {
	row := make([]string, 0, len(MainHeader))
	row = append(row, SheetName(p), p.Name, p.Email, p.Language)
	for _, code := range models.DeliveryDayCodes {
		row = append(row, yesNo(p.DeliversOn(code)))
	}

	paywall, endOfMembership := "Inactive", ""
	if sub.IsPaywallOpen() {
		paywall = "Active"
	}
	if sub != nil && sub.CurrentPeriodEnd != nil {
		endOfMembership = sub.CurrentPeriodEnd.UTC().Format(dateLayout)
	}
	row = append(row, paywall, endOfMembership, p.CreatedAt.UTC().Format(timestampLayout))
	return append(row, examples(p.Samples)...)
}

// StyleRow projects a style onto a sub-ledger row.
func StyleRow(s *models.Style) []string {
	row := []string{s.Name, s.Language, strings.Join(s.Topics, ", ")}
	row = append(row, examples(s.Samples)...)
	return append(row, s.CreatedAt.UTC().Format(timestampLayout))
}

func examples(samples []string) []string {
	out := make([]string, exampleColumns)
	for i := 0; i < exampleColumns && i < len(samples); i++ {
		out[i] = samples[i]
	}
	return out
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
