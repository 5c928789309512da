package query

import (
	"strings"

	"github.com/xmubeta/outlook-mcp-server/internal/source"
)

// orSeparator splits a search string into alternative terms. It is
// matched literally and is case-sensitive, so "or" inside a term is
// left alone.
const orSeparator = " OR "

// Expression is a disjunction of lower-cased substring terms.
type Expression struct {
	terms []string
}

// ParseExpression splits s on " OR ", trims and lower-cases each term
// and drops the empty ones. An empty Expression matches everything.
func ParseExpression(s string) Expression {
	var terms []string
	for _, part := range strings.Split(s, orSeparator) {
		term := strings.ToLower(strings.TrimSpace(part))
		if term == "" {
			continue
		}
		terms = append(terms, term)
	}
	return Expression{terms: terms}
}

// Empty reports whether the expression has no terms.
func (x Expression) Empty() bool { return len(x.terms) == 0 }

// Terms returns a copy of the lower-cased terms.
func (x Expression) Terms() []string {
	return append([]string(nil), x.terms...)
}

// Match reports whether any term is a case-insensitive substring of
// any of the given field values.
func (x Expression) Match(values ...string) bool {
	if x.Empty() {
		return true
	}
	for _, v := range values {
		for _, term := range x.terms {
			if source.ContainsFold(v, term) {
				return true
			}
		}
	}
	return false
}

// mailField and appointmentField pair a searchable field with the
// accessor the local predicate reads. The push-down restriction is
// built from the same tables.
type mailField struct {
	field source.SearchField
	value func(*source.RawMail) *string
}

type appointmentField struct {
	field source.SearchField
	value func(*source.RawAppointment) *string
}

var mailSearchFields = []mailField{
	{source.FieldSubject, func(m *source.RawMail) *string { return m.Subject }},
	{source.FieldSenderName, func(m *source.RawMail) *string { return m.SenderName }},
	{source.FieldBody, func(m *source.RawMail) *string { return m.Body }},
}

var appointmentSearchFields = []appointmentField{
	{source.FieldSubject, func(a *source.RawAppointment) *string { return a.Subject }},
	{source.FieldLocation, func(a *source.RawAppointment) *string { return a.Location }},
	{source.FieldBody, func(a *source.RawAppointment) *string { return a.Body }},
}

func (x Expression) matchMail(m *source.RawMail) bool {
	values := make([]string, 0, len(mailSearchFields))
	for _, f := range mailSearchFields {
		values = append(values, source.StringValue(f.value(m)))
	}
	return x.Match(values...)
}

func (x Expression) matchAppointment(a *source.RawAppointment) bool {
	values := make([]string, 0, len(appointmentSearchFields))
	for _, f := range appointmentSearchFields {
		values = append(values, source.StringValue(f.value(a)))
	}
	return x.Match(values...)
}

func (x Expression) mailRestriction() *source.Restriction {
	r := &source.Restriction{Terms: x.Terms()}
	for _, f := range mailSearchFields {
		r.Fields = append(r.Fields, f.field)
	}
	return r
}

func (x Expression) appointmentRestriction() *source.Restriction {
	r := &source.Restriction{Terms: x.Terms()}
	for _, f := range appointmentSearchFields {
		r.Fields = append(r.Fields, f.field)
	}
	return r
}
