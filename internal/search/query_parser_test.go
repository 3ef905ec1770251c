package search

import (
	"database/sql"
	"math"
	"reflect"
	"testing"

	"medix-backend/internal/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestParseQuery_SimpleFilter(t *testing.T) {
	query := `city CONTAINS "pune"`
	expected := &SubstringFilter{column: "city", substr: "pune"}

	filter, err := ParseQuery(query)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !reflect.DeepEqual(filter, expected) {
		t.Errorf("expected %v, got %v", expected, filter)
	}
}

func TestParseQuery_AndExpression(t *testing.T) {
	query := `city = "Mumbai" AND specialty CONTAINS "cardio"`
	expected := &AndFilter{
		filters: []Filter{
			&StringEqFilter{column: "city", value: "Mumbai"},
			&SubstringFilter{column: "specialty", substr: "cardio"},
		},
	}

	filter, err := ParseQuery(query)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !reflect.DeepEqual(filter, expected) {
		t.Errorf("expected %v, got %v", expected, filter)
	}
}

func TestParseQuery_OrExpression(t *testing.T) {
	query := `city = "Mumbai" OR city = "Pune"`
	expected := &OrFilter{
		filters: []Filter{
			&StringEqFilter{column: "city", value: "Mumbai"},
			&StringEqFilter{column: "city", value: "Pune"},
		},
	}

	filter, err := ParseQuery(query)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !reflect.DeepEqual(filter, expected) {
		t.Errorf("expected %v, got %v", expected, filter)
	}
}

func TestParseQuery_NotExpression(t *testing.T) {
	query := `NOT specialty CONTAINS "dental"`
	expected := &NotFilter{
		filter: &SubstringFilter{column: "specialty", substr: "dental"},
	}

	filter, err := ParseQuery(query)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !reflect.DeepEqual(filter, expected) {
		t.Errorf("expected %v, got %v", expected, filter)
	}
}

func TestParseQuery_Experience(t *testing.T) {
	for _, tc := range []struct {
		query    string
		expected Filter
	}{
		{`experience > 5`, &IntRangeFilter{column: "experience_years", min: 5, max: math.MaxInt}},
		{`experience < 10`, &IntRangeFilter{column: "experience_years", min: -1, max: 10}},
		{`experience = 7`, &IntRangeFilter{column: "experience_years", min: 6, max: 8}},
	} {
		filter, err := ParseQuery(tc.query)
		require.NoError(t, err, tc.query)
		assert.Equal(t, tc.expected, filter, tc.query)
	}
}

func TestParseQuery_Nested(t *testing.T) {
	query := `name CONTAINS "sharma" AND (city = "Delhi" OR city = "Noida")`

	filter, err := ParseQuery(query)
	require.NoError(t, err)

	and, ok := filter.(*AndFilter)
	require.True(t, ok)
	require.Len(t, and.filters, 2)
	assert.IsType(t, &SubstringFilter{}, and.filters[0])
	assert.IsType(t, &OrFilter{}, and.filters[1])
}

func TestParseQuery_Errors(t *testing.T) {
	for _, query := range []string{
		`hospital = "Apollo"`,         // unknown field
		`experience CONTAINS "five"`,  // experience requires ints
		`experience > "five"`,         // experience requires ints
		`city > 5`,                    // string field with int value
		`city CONTAINS`,               // missing value
		`city = "Pune" AND`,           // dangling operator
	} {
		_, err := ParseQuery(query)
		assert.Error(t, err, query)
	}
}

func TestFilterClause(t *testing.T) {
	filter, err := ParseQuery(`city CONTAINS "pune" AND NOT specialty = "Dermatology" OR experience > 5`)
	require.NoError(t, err)

	clause, args := filter.Clause()
	assert.Equal(t, "((LOWER(city) LIKE ? AND NOT (LOWER(specialty) = ?)) OR (experience_years > ? AND experience_years < ?))", clause)
	assert.Equal(t, []any{"%pune%", "dermatology", 5, math.MaxInt}, args)
}

func TestFilterAgainstDatabase(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.GetMigrator(db).Migrate())

	doctor := func(name, city, specialty string, years int64) *database.User {
		return &database.User{
			Id:              uuid.New(),
			Email:           name + "@example.com",
			FullName:        name,
			UserType:        database.RoleDoctor,
			City:            city,
			Specialty:       sql.NullString{String: specialty, Valid: true},
			ExperienceYears: sql.NullInt64{Int64: years, Valid: true},
			IsActive:        true,
		}
	}

	for _, doc := range []*database.User{
		doctor("Dr Sharma", "Pune", "Cardiology", 12),
		doctor("Dr Mehta", "Mumbai", "Dermatology", 4),
		doctor("Dr Rao", "Pune", "Dermatology", 8),
	} {
		require.NoError(t, db.Create(doc).Error)
	}

	find := func(query string) []string {
		filter, err := ParseQuery(query)
		require.NoError(t, err, query)

		clause, args := filter.Clause()

		var names []string
		require.NoError(t, db.Model(&database.User{}).Where(clause, args...).Order("full_name").Pluck("full_name", &names).Error)
		return names
	}

	assert.Equal(t, []string{"Dr Rao", "Dr Sharma"}, find(`city CONTAINS "pune"`))
	assert.Equal(t, []string{"Dr Rao"}, find(`city = "PUNE" AND specialty = "dermatology"`))
	assert.Equal(t, []string{"Dr Rao", "Dr Sharma"}, find(`experience > 5`))
	assert.Equal(t, []string{"Dr Mehta"}, find(`NOT city CONTAINS "pune"`))
	assert.Equal(t, []string{"Dr Mehta", "Dr Sharma"}, find(`name CONTAINS "sharma" OR experience < 5`))
}
