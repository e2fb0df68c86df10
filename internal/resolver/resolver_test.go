package resolver

import (
	"testing"
	"time"

	"github.com/fabsignup/fabsignup/internal/catalog"
	"github.com/fabsignup/fabsignup/pkg/fabman"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseConfig() Config {
	return Config{
		FieldMap: map[string]string{
			"First name":     "First name",
			"Last name":      "Last name",
			"Package":        "Package name",
			"Start":          "Package start date",
			"Birthday":       "Date of birth",
			"Notes A":        "Notes",
			"Notes B":        "Notes",
			"Gender":         "Gender",
			"Street":         "Address line 1",
			"House number":   "Address line 1",
			"Member no":      "Member number",
			"Timestamp":      "ignore",
			"Unknown target": "Does not exist",
		},
		PackageMap: map[string]string{
			"Laser":     "Laser (ID: 1)",
			"Laser Pro": "Laser Pro (ID: 2)",
			"Starter":   "Starter (ID: 7)",
			"Unpriced":  "",
		},
	}
}

func TestResolveSimpleMember(t *testing.T) {
	p, err := Resolve(Row{
		{Name: "First name", Value: String("Ada")},
		{Name: "Last name", Value: String("Lovelace")},
		{Name: "Package", Value: String("Starter")},
		{Name: "Timestamp", Value: String("2024-01-01 10:00:00")},
	}, nil, baseConfig())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"firstName": "Ada", "lastName": "Lovelace"}, p.Member)
	assert.Equal(t, []PackageAssignment{{PackageID: 7}}, p.Packages)
}

func TestResolveLongestPackageMatch(t *testing.T) {
	p, err := Resolve(Row{
		{Name: "First name", Value: String("Ada")},
		{Name: "Package", Value: String("Laser Pro, Laser")},
	}, nil, baseConfig())
	require.NoError(t, err)
	assert.Equal(t, []PackageAssignment{{PackageID: 2}, {PackageID: 1}}, p.Packages)
}

func TestResolvePackageListCollapsesSpaces(t *testing.T) {
	p, err := Resolve(Row{
		{Name: "First name", Value: String("Ada")},
		{Name: "Package", Value: String("Laser   Pro, Starter")},
	}, nil, baseConfig())
	require.NoError(t, err)
	assert.Equal(t, []PackageAssignment{{PackageID: 2}, {PackageID: 7}}, p.Packages)
}

func TestResolvePackageErrors(t *testing.T) {
	cases := []struct {
		value string
		check func(t *testing.T, err error)
	}{
		{"Laser Pro; Laser", func(t *testing.T, err error) {
			var e *MalformedPackageListError
			require.ErrorAs(t, err, &e)
			assert.Equal(t, "; Laser", e.Fragment)
			assert.Equal(t, CategoryMalformedInput, CategoryOf(err))
		}},
		{"Laser, ", func(t *testing.T, err error) {
			var e *MalformedPackageListError
			require.ErrorAs(t, err, &e)
		}},
		{"Woodshop", func(t *testing.T, err error) {
			var e *UnmappedPackageError
			require.ErrorAs(t, err, &e)
			assert.Equal(t, "Woodshop", e.Name)
			assert.Equal(t, CategoryConfiguration, CategoryOf(err))
		}},
		{"Unpriced", func(t *testing.T, err error) {
			var e *UnmappedPackageError
			require.ErrorAs(t, err, &e)
			assert.Equal(t, "Unpriced", e.Name)
		}},
	}
	for _, tc := range cases {
		t.Run(tc.value, func(t *testing.T) {
			_, err := Resolve(Row{
				{Name: "First name", Value: String("Ada")},
				{Name: "Package", Value: String(tc.value)},
			}, nil, baseConfig())
			require.Error(t, err)
			tc.check(t, err)
		})
	}
}

func TestResolveFromDateAttachesToAllOpenPackages(t *testing.T) {
	row := Row{
		{Name: "Start", Value: String("2024-03-01")},
		{Name: "First name", Value: String("Ada")},
		{Name: "Package", Value: String("Laser, Starter")},
	}
	order := []string{"First name", "Package", "Start"}
	p, err := Resolve(row, order, baseConfig())
	require.NoError(t, err)
	assert.Equal(t, []PackageAssignment{
		{PackageID: 1, FromDate: "2024-03-01"},
		{PackageID: 7, FromDate: "2024-03-01"},
	}, p.Packages)
}

func TestResolveFromDateWithoutPackageIsDropped(t *testing.T) {
	p, err := Resolve(Row{
		{Name: "First name", Value: String("Ada")},
		{Name: "Start", Value: String("2024-03-01")},
	}, []string{"Start", "First name"}, baseConfig())
	require.NoError(t, err)
	assert.Empty(t, p.Packages)
}

func TestOrderFieldsIsStable(t *testing.T) {
	row := Row{
		{Name: "c"}, {Name: "x"}, {Name: "a"}, {Name: "y"}, {Name: "b"},
	}
	got := OrderFields(row, []string{"a", "b", "c"})
	var names []string
	for _, f := range got {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"x", "y", "a", "b", "c"}, names)
}

func TestCalendarDateIgnoresProcessZone(t *testing.T) {
	zones := []*time.Location{
		time.UTC,
		time.FixedZone("east", 14*3600),
		time.FixedZone("west", -12*3600),
	}
	for _, z := range zones {
		d, ok := DateValue(time.Date(2024, 1, 5, 0, 0, 0, 0, z)).CalendarDate()
		require.True(t, ok)
		assert.Equal(t, "2024-01-05", d)
		d, ok = DateValue(time.Date(2024, 1, 5, 23, 59, 0, 0, z)).CalendarDate()
		require.True(t, ok)
		assert.Equal(t, "2024-01-05", d)
	}
}

func TestResolveDateOfBirth(t *testing.T) {
	cases := []struct {
		value Value
		want  string
	}{
		{DateValue(time.Date(1815, 12, 10, 0, 0, 0, 0, time.FixedZone("GMT", 0))), "1815-12-10"},
		{String("1815-12-10"), "1815-12-10"},
		{String("12/10/1815"), "1815-12-10"},
		{String("December 10, 1815"), "1815-12-10"},
		{String(""), ""},
	}
	for _, tc := range cases {
		p, err := Resolve(Row{
			{Name: "First name", Value: String("Ada")},
			{Name: "Birthday", Value: tc.value},
		}, nil, baseConfig())
		require.NoError(t, err)
		assert.Equal(t, tc.want, p.Member["dateOfBirth"])
	}

	_, err := Resolve(Row{
		{Name: "First name", Value: String("Ada")},
		{Name: "Birthday", Value: String("sometime")},
	}, nil, baseConfig())
	var e *InvalidDateError
	require.ErrorAs(t, err, &e)
}

func TestResolveGender(t *testing.T) {
	cfg := baseConfig()
	cfg.GenderMap = map[string]string{"Female": "female"}

	p, err := Resolve(Row{
		{Name: "First name", Value: String("Ada")},
		{Name: "Gender", Value: String("Female")},
	}, nil, cfg)
	require.NoError(t, err)
	assert.Equal(t, "female", p.Member["gender"])

	_, err = Resolve(Row{
		{Name: "First name", Value: String("Ada")},
		{Name: "Gender", Value: String("Other")},
	}, nil, cfg)
	var e *UnmappedGenderError
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "Other", e.Value)

	p, err = Resolve(Row{
		{Name: "First name", Value: String("Ada")},
		{Name: "Gender", Value: String("")},
	}, nil, cfg)
	require.NoError(t, err)
	_, set := p.Member["gender"]
	assert.False(t, set)
}

func TestResolveGenderWithoutTablePassesThrough(t *testing.T) {
	p, err := Resolve(Row{
		{Name: "First name", Value: String("Ada")},
		{Name: "Gender", Value: String("Other")},
	}, nil, baseConfig())
	require.NoError(t, err)
	assert.Equal(t, "Other", p.Member["gender"])
}

func TestResolveRichTextAppend(t *testing.T) {
	p, err := Resolve(Row{
		{Name: "Notes B", Value: String("y")},
		{Name: "First name", Value: String("Ada")},
		{Name: "Notes A", Value: String("x")},
	}, []string{"First name", "Notes A", "Notes B"}, baseConfig())
	require.NoError(t, err)
	assert.Equal(t, "x<br>Notes B: y", p.Member["notes"])
}

func TestResolvePlainAppendAndNumbers(t *testing.T) {
	p, err := Resolve(Row{
		{Name: "First name", Value: String("Ada")},
		{Name: "Street", Value: String("Main St")},
		{Name: "House number", Value: Number(42)},
	}, []string{"First name", "Street", "House number"}, baseConfig())
	require.NoError(t, err)
	assert.Equal(t, "Main St 42", p.Member["address"])
}

func TestResolveMissingName(t *testing.T) {
	_, err := Resolve(Row{
		{Name: "Package", Value: String("Starter")},
	}, nil, baseConfig())
	var e *MissingNameError
	require.ErrorAs(t, err, &e)
}

func TestResolveIgnoresUnmappedAndUnknownTargets(t *testing.T) {
	p, err := Resolve(Row{
		{Name: "Last name", Value: String("Lovelace")},
		{Name: "Not in map", Value: String("z")},
		{Name: "Unknown target", Value: String("z")},
		{Name: "Timestamp", Value: String("z")},
	}, nil, baseConfig())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"lastName": "Lovelace"}, p.Member)
}

func TestResolveRefusesMemberNumber(t *testing.T) {
	_, err := Resolve(Row{
		{Name: "First name", Value: String("Ada")},
		{Name: "Member no", Value: String("17")},
	}, nil, baseConfig())
	var e *UnsupportedTargetError
	require.ErrorAs(t, err, &e)
	assert.Equal(t, catalog.NameMemberNumber, e.Target)
}

func TestPackageID(t *testing.T) {
	id, ok := PackageID("Laser Pro (ID: 12)")
	assert.True(t, ok)
	assert.Equal(t, int64(12), id)

	id, ok = PackageID("Weird (ID:3)")
	assert.True(t, ok)
	assert.Equal(t, int64(3), id)

	_, ok = PackageID("Laser Pro")
	assert.False(t, ok)
	_, ok = PackageID("(ID: 5) trailing")
	assert.False(t, ok)
}

func TestResolveSpace(t *testing.T) {
	one := []fabman.Space{{ID: 9, Name: "Lab", Timezone: "Europe/Vienna"}}
	two := []fabman.Space{{ID: 9, Name: "Lab"}, {ID: 10, Name: "Annex"}}

	p := NewPayload()
	s, err := ResolveSpace(p, one, 3)
	require.NoError(t, err)
	assert.Equal(t, "Lab", s.Name)
	assert.Equal(t, "9", p.Member["space"])

	_, err = ResolveSpace(NewPayload(), two, 3)
	var amb *AmbiguousSpaceError
	require.ErrorAs(t, err, &amb)
	assert.Equal(t, 2, amb.Count)
	assert.Contains(t, err.Error(), "contains 2 spaces")

	p = NewPayload()
	p.Member["space"] = "10"
	s, err = ResolveSpace(p, two, 3)
	require.NoError(t, err)
	assert.Equal(t, "Annex", s.Name)

	p.Member["space"] = "11"
	_, err = ResolveSpace(p, two, 3)
	var unk *UnknownSpaceError
	require.ErrorAs(t, err, &unk)
}

func TestPayloadBody(t *testing.T) {
	p := NewPayload()
	p.Member["account"] = "3"
	p.Member["space"] = "9"
	p.Member["firstName"] = "Ada"
	p.Member["lastName"] = ""
	body := p.Body()
	assert.Equal(t, int64(3), body["account"])
	assert.Equal(t, int64(9), body["space"])
	assert.Equal(t, "Ada", body["firstName"])
	v, ok := body["lastName"]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestCategoryOfRemoteError(t *testing.T) {
	err := &fabman.APIError{Method: "POST", URL: "/members", StatusCode: 500}
	assert.Equal(t, CategoryRemoteAPI, CategoryOf(err))
	assert.Equal(t, Category(""), CategoryOf(nil))
}
