package codec

import (
	"strings"
	"time"
)

// Header is the 80-byte file header record.
//
// Layout: 'H'(1) | org id(10) | org name(30) | creation date YYYYMMDD(8) |
// creation time HHMMSS(6) | file sequence, zero-padded(6) | filler(19).
type Header struct {
	OrgID     string
	OrgName   string
	CreatedAt time.Time
	Sequence  int64
}

// Encode renders the header line, without terminator.
func (h Header) Encode() (string, error) {
	var b strings.Builder
	b.WriteString("H")

	orgID, err := textField("org_id", h.OrgID, 10)
	if err != nil {
		return "", err
	}
	b.WriteString(orgID)

	orgName, err := textField("org_name", h.OrgName, 30)
	if err != nil {
		return "", err
	}
	b.WriteString(orgName)

	b.WriteString(h.CreatedAt.Format(dateLayout))
	b.WriteString(h.CreatedAt.Format(timeLayout))

	seq, err := numberField("file_sequence", h.Sequence, 6)
	if err != nil {
		return "", err
	}
	b.WriteString(seq)
	b.WriteString(filler(19))

	return assertLength("header", b.String(), HeaderLength)
}

// Detail is the 300-byte per-tenancy detail record.
//
// Layout: 'D'(1) | surname(30) | forename(30) | middle name(30) |
// DOB YYYYMMDD or spaces(8) | address lines 1-4(30 each) | postcode(8) |
// tenancy start(8) | tenancy end or spaces(8) | rent pence(8) |
// frequency code W|F|M(1) | outstanding balance pence(8) |
// payment status digit(1) | Y/N flags: gone away, arrangement to pay, query,
// deceased, third party paid, evicted(6) | eviction date or spaces(8) |
// tenancy reference(10) | filler(15).
type Detail struct {
	Surname      string
	Forename     string
	MiddleName   string
	DateOfBirth  *time.Time
	AddressLine1 string
	AddressLine2 string
	AddressLine3 string
	AddressLine4 string
	Postcode     string
	TenancyStart *time.Time
	TenancyEnd   *time.Time

	RentPence     int64
	FrequencyCode string
	BalancePence  int64

	GoneAway         bool
	ArrangementToPay bool
	Query            bool
	Deceased         bool
	ThirdPartyPaid   bool
	Evicted          bool
	EvictionDate     *time.Time
	TenancyRef       string
}

// PaymentStatusDigit is '0' when the outstanding balance is settled and '1'
// otherwise.
func (d Detail) PaymentStatusDigit() string {
	if d.BalancePence == 0 {
		return "0"
	}
	return "1"
}

// Encode renders the detail line, without terminator.
func (d Detail) Encode() (string, error) {
	var b strings.Builder
	b.WriteString("D")

	texts := []struct {
		name  string
		value string
		width int
	}{
		{"surname", d.Surname, 30},
		{"forename", d.Forename, 30},
		{"middle_name", d.MiddleName, 30},
	}
	for _, f := range texts {
		enc, err := textField(f.name, f.value, f.width)
		if err != nil {
			return "", err
		}
		b.WriteString(enc)
	}

	b.WriteString(dateField(d.DateOfBirth))

	addresses := []struct {
		name  string
		value string
	}{
		{"address_line_1", d.AddressLine1},
		{"address_line_2", d.AddressLine2},
		{"address_line_3", d.AddressLine3},
		{"address_line_4", d.AddressLine4},
	}
	for _, f := range addresses {
		enc, err := textField(f.name, f.value, 30)
		if err != nil {
			return "", err
		}
		b.WriteString(enc)
	}

	postcode, err := textField("postcode", d.Postcode, 8)
	if err != nil {
		return "", err
	}
	b.WriteString(postcode)

	b.WriteString(dateField(d.TenancyStart))
	b.WriteString(dateField(d.TenancyEnd))

	rent, err := numberField("rent_pence", d.RentPence, 8)
	if err != nil {
		return "", err
	}
	b.WriteString(rent)

	freq, err := textField("frequency_code", d.FrequencyCode, 1)
	if err != nil {
		return "", err
	}
	b.WriteString(freq)

	balance, err := numberField("balance_pence", d.BalancePence, 8)
	if err != nil {
		return "", err
	}
	b.WriteString(balance)

	b.WriteString(d.PaymentStatusDigit())
	b.WriteString(yn(d.GoneAway))
	b.WriteString(yn(d.ArrangementToPay))
	b.WriteString(yn(d.Query))
	b.WriteString(yn(d.Deceased))
	b.WriteString(yn(d.ThirdPartyPaid))
	b.WriteString(yn(d.Evicted))
	b.WriteString(dateField(d.EvictionDate))

	ref, err := textField("tenancy_ref", d.TenancyRef, 10)
	if err != nil {
		return "", err
	}
	b.WriteString(ref)
	b.WriteString(filler(15))

	return assertLength("detail", b.String(), DetailLength)
}

// Trailer is the 80-byte file trailer record.
//
// Layout: 'T'(1) | org id(10) | record count, zero-padded(10) |
// total balance pence, zero-padded(10) | filler(49).
type Trailer struct {
	OrgID             string
	RecordCount       int
	TotalBalancePence int64
}

// Encode renders the trailer line, without terminator.
func (t Trailer) Encode() (string, error) {
	var b strings.Builder
	b.WriteString("T")

	orgID, err := textField("org_id", t.OrgID, 10)
	if err != nil {
		return "", err
	}
	b.WriteString(orgID)

	count, err := numberField("record_count", int64(t.RecordCount), 10)
	if err != nil {
		return "", err
	}
	b.WriteString(count)

	total, err := numberField("total_balance_pence", t.TotalBalancePence, 10)
	if err != nil {
		return "", err
	}
	b.WriteString(total)
	b.WriteString(filler(49))

	return assertLength("trailer", b.String(), TrailerLength)
}

// Assemble joins encoded lines into final file content, terminating every
// line including the last.
func Assemble(header string, details []string, trailer string) string {
	var b strings.Builder
	b.Grow(len(header) + len(trailer) + len(details)*(DetailLength+len(LineEnding)) + 2*len(LineEnding))
	b.WriteString(header)
	b.WriteString(LineEnding)
	for _, d := range details {
		b.WriteString(d)
		b.WriteString(LineEnding)
	}
	b.WriteString(trailer)
	b.WriteString(LineEnding)
	return b.String()
}
