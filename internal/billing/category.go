package billing

import (
	"fmt"
	"sort"
	"strings"
)

// OtherCategory is the implicit bucket for tariff codes no category claims.
const OtherCategory = "Other"

// Category is a named set of tariff codes.
type Category struct {
	Name  string   `json:"name" mapstructure:"name"`
	Codes []string `json:"codes" mapstructure:"codes"`
}

// IsOther reports whether c is the implicit catch-all bucket.
func (c Category) IsOther() bool {
	return c.Name == OtherCategory
}

// Label renders the category with its codes sorted, e.g. "Domestic(11, 21)".
func (c Category) Label() string {
	if c.IsOther() || len(c.Codes) == 0 {
		return c.Name
	}
	codes := append([]string(nil), c.Codes...)
	sort.Strings(codes)
	return fmt.Sprintf("%s(%s)", c.Name, strings.Join(codes, ", "))
}

// DefaultCategories is the stock tariff partition.
func DefaultCategories() []Category {
	return []Category{
		{Name: "Domestic", Codes: []string{"11", "21"}},
		{Name: "Production", Codes: []string{"31", "32"}},
		{Name: "Institutional", Codes: []string{"41", "42"}},
		{Name: "Commercial-Services", Codes: []string{"51", "52", "53"}},
		{Name: "Wholesale", Codes: []string{"61"}},
	}
}

// CategoryMapper maps tariff codes to customer categories. The categories
// form a disjoint partition; anything unclaimed maps to Other.
type CategoryMapper struct {
	categories []Category
	byCode     map[string]int
	byName     map[string]int
}

// NewCategoryMapper validates categories and builds a mapper. Names must be
// unique, non-empty and not "Other"; code sets must not overlap.
func NewCategoryMapper(categories []Category) (*CategoryMapper, error) {
	const op = "NewCategoryMapper"

	m := &CategoryMapper{
		categories: make([]Category, 0, len(categories)),
		byCode:     make(map[string]int),
		byName:     make(map[string]int),
	}
	for i, c := range categories {
		name := strings.TrimSpace(c.Name)
		switch {
		case name == "":
			return nil, fmt.Errorf("%s: category %d has no name", op, i+1)
		case strings.EqualFold(name, OtherCategory):
			return nil, fmt.Errorf("%s: %q is reserved for unmapped tariff codes", op, OtherCategory)
		case len(c.Codes) == 0:
			return nil, fmt.Errorf("%s: category %q has no tariff codes", op, name)
		}
		if _, dup := m.byName[strings.ToLower(name)]; dup {
			return nil, fmt.Errorf("%s: duplicate category %q", op, name)
		}

		codes := make([]string, 0, len(c.Codes))
		for _, code := range c.Codes {
			code = strings.TrimSpace(code)
			if prev, taken := m.byCode[code]; taken {
				return nil, fmt.Errorf("%s: tariff code %q belongs to both %q and %q",
					op, code, m.categories[prev].Name, name)
			}
			m.byCode[code] = len(m.categories)
			codes = append(codes, code)
		}

		m.byName[strings.ToLower(name)] = len(m.categories)
		m.categories = append(m.categories, Category{Name: name, Codes: codes})
	}
	return m, nil
}

// DefaultCategoryMapper returns a mapper over DefaultCategories.
func DefaultCategoryMapper() *CategoryMapper {
	m, err := NewCategoryMapper(DefaultCategories())
	if err != nil {
		panic(err)
	}
	return m
}

// Lookup returns the category owning code, or the Other category.
func (m *CategoryMapper) Lookup(code string) Category {
	if i, ok := m.byCode[strings.TrimSpace(code)]; ok {
		return m.categories[i]
	}
	return Category{Name: OtherCategory}
}

// Find returns the category with the given name (case-insensitive). "Other"
// always resolves.
func (m *CategoryMapper) Find(name string) (Category, bool) {
	name = strings.TrimSpace(name)
	if strings.EqualFold(name, OtherCategory) {
		return Category{Name: OtherCategory}, true
	}
	i, ok := m.byName[strings.ToLower(name)]
	if !ok {
		return Category{}, false
	}
	return m.categories[i], true
}

// Categories returns the configured categories in order, without Other.
func (m *CategoryMapper) Categories() []Category {
	out := make([]Category, len(m.categories))
	copy(out, m.categories)
	return out
}

// Names lists the category names in order, followed by Other.
func (m *CategoryMapper) Names() []string {
	out := make([]string, 0, len(m.categories)+1)
	for _, c := range m.categories {
		out = append(out, c.Name)
	}
	return append(out, OtherCategory)
}

// KnownCodes lists every tariff code claimed by a category.
func (m *CategoryMapper) KnownCodes() []string {
	var out []string
	for _, c := range m.categories {
		out = append(out, c.Codes...)
	}
	return out
}
