package source

// Severity classifies a validation finding. Errors exclude the row from the
// final batch content; warnings never do.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Finding is one validation result for a source row.
type Finding struct {
	Field    string   `json:"field"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// Findings is the full validation result for one row.
type Findings []Finding

// HasErrors reports whether any finding is an error.
func (f Findings) HasErrors() bool {
	for _, r := range f {
		if r.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Errors returns only the error-severity findings.
func (f Findings) Errors() Findings {
	var out Findings
	for _, r := range f {
		if r.Severity == SeverityError {
			out = append(out, r)
		}
	}
	return out
}

// Validate runs the completeness and sanity checks on an assembled row.
// The returned findings are in rule order and deterministic for a given row.
func Validate(row Row) Findings {
	var out Findings

	addError := func(field, message string) {
		out = append(out, Finding{Field: field, Message: message, Severity: SeverityError})
	}
	addWarning := func(field, message string) {
		out = append(out, Finding{Field: field, Message: message, Severity: SeverityWarning})
	}

	if row.Person.Surname == "" {
		addError("surname", "Missing surname")
	}
	if row.Person.Forename == "" {
		addWarning("forename", "Missing forename")
	}
	if row.Profile.DateOfBirth == nil {
		addError("date_of_birth", "Missing DOB")
	}
	if row.Profile.AddressLine1 == "" {
		addError("address_line_1", "Missing address line 1")
	}
	if row.Profile.Postcode == "" {
		addError("postcode", "Missing postcode")
	}
	if row.Tenancy.StartDate == nil {
		addError("tenancy_start_date", "Missing tenancy start date")
	}
	if row.Tenancy.Ref == "" {
		addWarning("tenancy_ref", "Missing tenancy reference")
	}

	rent, err := Pence(row.Tenancy.MonthlyRent)
	switch {
	case err != nil:
		addError("monthly_rent", "Unparseable rent amount")
	case row.Tenancy.MonthlyRent == "" || rent < 0:
		addError("monthly_rent", "Missing or negative rent amount")
	}

	if _, err := Pence(row.Tenancy.OutstandingBalance); err != nil {
		addError("outstanding_balance", "Unparseable outstanding balance")
	}

	return out
}
