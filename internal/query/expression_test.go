package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseExpression(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"budget", []string{"budget"}},
		{"Alice OR Bob", []string{"alice", "bob"}},
		{"  alice   OR  bob  ", []string{"alice", "bob"}},
		{"rock or roll", []string{"rock or roll"}},
		{"alice OR  OR bob", []string{"alice", "bob"}},
		{"", nil},
		{" OR ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseExpression(tt.in).Terms())
		})
	}
}

func TestMatchAliceOrBob(t *testing.T) {
	tests := []struct {
		name   string
		fields []string
		want   bool
	}{
		{"alice in subject", []string{"Lunch with ALICE", "", ""}, true},
		{"bob in body", []string{"", "", "ask Bobby"}, true},
		{"both", []string{"alice", "bob", ""}, true},
		{"neither", []string{"Carol", "Dave", "hello"}, false},
		{"no fields", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseExpression("alice OR bob").Match(tt.fields...))
			assert.Equal(t, tt.want, ParseExpression("bob OR alice").Match(tt.fields...))
		})
	}
}

func TestEmptyExpressionMatchesEverything(t *testing.T) {
	x := ParseExpression("")
	assert.True(t, x.Empty())
	assert.True(t, x.Match())
	assert.True(t, x.Match("anything"))
}

func TestRestrictionsShareFieldTables(t *testing.T) {
	x := ParseExpression("A OR b")

	mail := x.mailRestriction()
	assert.Equal(t, []string{"a", "b"}, mail.Terms)
	assert.Len(t, mail.Fields, len(mailSearchFields))

	cal := x.appointmentRestriction()
	assert.Len(t, cal.Fields, len(appointmentSearchFields))
	for i, f := range appointmentSearchFields {
		assert.Equal(t, f.field, cal.Fields[i])
	}
}
