package domain

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MaxNameLength is the longest name or city, in characters, a cleaned entry may carry.
const MaxNameLength = 100

// EntryColumns are the source and backup columns of a form entry.
var EntryColumns = []string{"nombre", "ciudad", "clima", "descripcion", "imagen"}

// RawEntry is one row of the user-submitted entries table. Every field is a
// pointer so NULLs survive the read and are validated explicitly.
type RawEntry struct {
	Name         *string `gorm:"column:nombre" json:"nombre"`
	City         *string `gorm:"column:ciudad" json:"ciudad"`
	WeatherLabel *string `gorm:"column:clima" json:"clima"`
	Description  *string `gorm:"column:descripcion" json:"descripcion"`
	ImageRef     *string `gorm:"column:imagen" json:"imagen"`
}

func (RawEntry) Columns() []string { return EntryColumns }

func (e RawEntry) Values() []any {
	return []any{
		stringOrNil(e.Name),
		stringOrNil(e.City),
		stringOrNil(e.WeatherLabel),
		stringOrNil(e.Description),
		stringOrNil(e.ImageRef),
	}
}

// CleanedEntry is the normalized form of a RawEntry.
type CleanedEntry struct {
	Name         string `gorm:"column:nombre" json:"nombre"`
	City         string `gorm:"column:ciudad" json:"ciudad"`
	WeatherLabel string `gorm:"column:clima" json:"clima"`
	Description  string `gorm:"column:descripcion" json:"descripcion"`
	ImageRef     string `gorm:"column:imagen" json:"imagen"`
}

func (CleanedEntry) Columns() []string { return EntryColumns }

func (e CleanedEntry) Values() []any {
	return []any{e.Name, e.City, e.WeatherLabel, e.Description, e.ImageRef}
}

// CleanEntry normalizes a raw entry. It returns a *FieldError when a required
// field is NULL or when the cleaned name or city exceeds MaxNameLength.
func CleanEntry(raw RawEntry) (CleanedEntry, error) {
	if raw.Name == nil {
		return CleanedEntry{}, &FieldError{Field: "nombre", Err: ErrMissingField}
	}
	if raw.City == nil {
		return CleanedEntry{}, &FieldError{Field: "ciudad", Err: ErrMissingField}
	}
	if raw.WeatherLabel == nil {
		return CleanedEntry{}, &FieldError{Field: "clima", Err: ErrMissingField}
	}

	name := TitleCase(strings.TrimSpace(*raw.Name))
	city := TitleCase(strings.TrimSpace(*raw.City))

	if utf8.RuneCountInString(name) > MaxNameLength {
		return CleanedEntry{}, &FieldError{Field: "nombre", Err: ErrFieldTooLong}
	}
	if utf8.RuneCountInString(city) > MaxNameLength {
		return CleanedEntry{}, &FieldError{Field: "ciudad", Err: ErrFieldTooLong}
	}

	return CleanedEntry{
		Name:         name,
		City:         city,
		WeatherLabel: Capitalize(strings.TrimSpace(*raw.WeatherLabel)),
		Description:  CollapseSpace(optional(raw.Description)),
		ImageRef:     strings.TrimSpace(optional(raw.ImageRef)),
	}, nil
}

// TitleCase upper-cases the first letter of every word and lower-cases the rest.
func TitleCase(s string) string {
	return cases.Title(language.Und).String(s)
}

// Capitalize upper-cases the first character and lower-cases the rest.
func Capitalize(s string) string {
	first, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return string(unicode.ToTitle(first)) + cases.Lower(language.Und).String(s[size:])
}

// CollapseSpace trims s and replaces every run of whitespace with one space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func optional(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
