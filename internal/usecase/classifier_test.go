package usecase

import (
	"testing"

	"github.com/agroprecios/backend/internal/domain"
)

func TestClassifier_IsExcluded(t *testing.T) {
	c := NewClassifier(DefaultTaxonomy())

	testCases := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "combo marker", input: "COMBO TOMATE 1KG", want: true},
		{name: "pack marker", input: "PACK LECHE 6 U", want: true},
		{name: "licensed character", input: "GALLETITAS MINIONS 100G", want: true},
		{name: "accented promo marker", input: "Promoción Naranja x kg", want: true},
		{name: "plain produce", input: "TOMATE PERITA 1KG", want: false},
		{name: "marker inside a word does not count", input: "PACKAGING TOMATE", want: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := c.IsExcluded(tc.input); got != tc.want {
				t.Errorf("IsExcluded(%q) = %v, want %v", tc.input, got, tc.want)
			}
		})
	}
}

func TestClassifier_AssignGroup(t *testing.T) {
	c := NewClassifier(DefaultTaxonomy())

	testCases := []struct {
		name         string
		input        string
		wantGroup    string
		wantSubgroup string
		wantOK       bool
	}{
		{name: "tomato", input: "TOMATE PERITA 1KG", wantGroup: "Verduras", wantSubgroup: "Tomate", wantOK: true},
		{name: "tomato juice keeps keyword group", input: "JUGO DE TOMATE 1L", wantGroup: "Verduras", wantSubgroup: "Tomate", wantOK: true},
		{name: "accented keyword", input: "Limón Tahití x kg", wantGroup: "Frutas", wantSubgroup: "Limon", wantOK: true},
		{name: "generic word breaks cross group tie", input: "YOGUR DE FRUTILLA 1L", wantGroup: "Leches", wantSubgroup: "Yogur", wantOK: true},
		{name: "tie goes to first declared group", input: "TORTA DE MANZANA", wantGroup: "Panificados", wantSubgroup: "Torta", wantOK: true},
		{name: "specific subgroup beats generic one", input: "QUESO PARAGUAY 1KG", wantGroup: "Quesos", wantSubgroup: "Queso Paraguay", wantOK: true},
		{name: "subgroup exclusion", input: "LECHE CONDENSADA 395G", wantGroup: "Leches", wantSubgroup: "Leche Condensada", wantOK: true},
		{name: "quail eggs", input: "HUEVO DE CODORNIZ X 12", wantGroup: "Huevos", wantSubgroup: "Huevo Codorniz", wantOK: true},
		{name: "hen eggs", input: "HUEVOS BLANCOS 30 UNID", wantGroup: "Huevos", wantSubgroup: "Huevo Gallina", wantOK: true},
		{name: "multi word keyword", input: "CEREAL CORN FLAKES 500G", wantGroup: "Cereales", wantSubgroup: "Copos", wantOK: true},
		{name: "fallback to broad group", input: "QUESO CREMOSO 500G", wantGroup: "Quesos", wantSubgroup: "", wantOK: true},
		{name: "excluded subgroup falls back", input: "DULCE DE LECHE 1KG", wantGroup: "Leches", wantSubgroup: "", wantOK: true},
		{name: "no match", input: "CAFE MOLIDO 500G", wantOK: false},
		{name: "papaya is not potato", input: "PAPAYA 1KG", wantOK: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			group, subgroup, ok := c.AssignGroup(tc.input)
			if ok != tc.wantOK {
				t.Fatalf("AssignGroup(%q) ok = %v, want %v", tc.input, ok, tc.wantOK)
			}
			if group != tc.wantGroup || subgroup != tc.wantSubgroup {
				t.Errorf("AssignGroup(%q) = (%q, %q), want (%q, %q)",
					tc.input, group, subgroup, tc.wantGroup, tc.wantSubgroup)
			}
		})
	}
}

func TestClassifier_FreshTag(t *testing.T) {
	c := NewClassifier(DefaultTaxonomy())

	testCases := []struct {
		input string
		want  string
	}{
		{input: "TOMATE PERITA 1KG", want: "Tomate fresco"},
		{input: "JUGO DE TOMATE 1L", want: ""},
		{input: "TOMATE TRITURADO 520G", want: ""},
		{input: "PURÉ DE TOMATE", want: ""},
		{input: "CEBOLLA MORADA X KG", want: "Cebolla fresca"},
		{input: "PAPAS FRITAS 100G", want: ""},
		{input: "NARANJA JUGO X KG", want: ""},
		{input: "TORTA DE MANZANA", want: ""},
		{input: "FRUTILLA X KG", want: "Frutilla fresca"},
		{input: "LECHE ENTERA 1L", want: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			if got := c.FreshTag(tc.input); got != tc.want {
				t.Errorf("FreshTag(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestClassifier_FirstMatchingFreshRuleWins(t *testing.T) {
	taxonomy, err := NewTaxonomy(domain.TaxonomySpec{
		Groups: []domain.GroupSpec{{Name: "Verduras", Keywords: []string{"tomate"}}},
		FreshRules: []domain.FreshRule{
			{Tag: "Tomate cherry", Include: []string{"cherry"}, Exclude: `\bjugo\b`},
			{Tag: "Tomate fresco", Include: []string{"tomate"}, Exclude: `\bjugo\b`},
		},
	})
	if err != nil {
		t.Fatalf("NewTaxonomy() error = %v", err)
	}
	c := NewClassifier(taxonomy)

	if got := c.FreshTag("TOMATE CHERRY 250G"); got != "Tomate cherry" {
		t.Errorf("FreshTag = %q, want Tomate cherry", got)
	}
	if got := c.FreshTag("TOMATE REDONDO"); got != "Tomate fresco" {
		t.Errorf("FreshTag = %q, want Tomate fresco", got)
	}
}

func TestNewTaxonomy_Validation(t *testing.T) {
	testCases := []struct {
		name string
		spec domain.TaxonomySpec
	}{
		{name: "no groups", spec: domain.TaxonomySpec{}},
		{name: "bad exclusion pattern", spec: domain.TaxonomySpec{
			Exclusions: []string{"(unclosed"},
			Groups:     []domain.GroupSpec{{Name: "Frutas"}},
		}},
		{name: "empty group name", spec: domain.TaxonomySpec{
			Groups: []domain.GroupSpec{{Name: " "}},
		}},
		{name: "fresh rule without include", spec: domain.TaxonomySpec{
			Groups:     []domain.GroupSpec{{Name: "Frutas"}},
			FreshRules: []domain.FreshRule{{Tag: "Naranja fresca"}},
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewTaxonomy(tc.spec); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestTaxonomy_GroupKeywords(t *testing.T) {
	keywords := DefaultTaxonomy().GroupKeywords()
	if len(keywords) == 0 {
		t.Fatal("expected group keywords")
	}
	if keywords[0] != "pan" {
		t.Errorf("first keyword = %q, want pan", keywords[0])
	}
	seen := make(map[string]bool)
	for _, kw := range keywords {
		if seen[kw] {
			t.Errorf("duplicate keyword %q", kw)
		}
		seen[kw] = true
	}
}
