package usecase

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/agroprecios/backend/internal/domain"
)

// processedFormsPattern covers derivative products that must never carry a fresh tag
const processedFormsPattern = `\b(jugos?|pures?|salsas?|extractos?|pastas?|conservas?|enlatad[oa]s?|congelad[oa]s?|deshidratad[oa]s?|polvo|ketchup|sopas?|mermeladas?|dulces?|triturad[oa]s?|pulpas?|concentrad[oa]s?|nectar|fritas?|chips|snacks?|en almibar|disecad[oa]s?|tortas?|tartas?|budin(es)?|galletit?as?|helados?|yogurt?)\b`

// DefaultTaxonomySpec returns the built-in grocery taxonomy.
// Group order is also the tie-break order of the classifier.
func DefaultTaxonomySpec() domain.TaxonomySpec {
	return domain.TaxonomySpec{
		Exclusions: []string{
			`\b(combos?|packs?|kits?|promos?|promocion|set|canastas?|regalos?|surtidos?)\b`,
			`\b(disney|marvel|barbie|minions|paw patrol|hot wheels|spiderman|peppa|pokemon|frozen ii)\b`,
			`\b(juguetes?|shampoo|detergente|alimento para (perros|gatos)|mascotas?)\b`,
		},
		Groups: []domain.GroupSpec{
			{
				Name:         "Panificados",
				Keywords:     []string{"pan", "baguette", "tostada", "torta", "bizcochuelo", "madalena", "galleta", "masa"},
				GenericWords: []string{"panificado", "panaderia"},
				Subgroups: []domain.SubgroupSpec{
					{Name: "Pan", Keywords: []string{"pan", "baguette", "felipe", "lactal", "chipa"}, Exclude: []string{`\bpan de (azucar|molde de torta)\b`}},
					{Name: "Tostada", Keywords: []string{"tostada", "tostadas"}},
					{Name: "Galleta", Keywords: []string{"galleta", "galletas", "galletita", "galletitas"}},
					{Name: "Torta", Keywords: []string{"torta", "bizcochuelo", "madalena", "magdalena"}},
				},
			},
			{
				Name:         "Frutas",
				Keywords:     []string{"naranja", "manzana", "banana", "pera", "uva", "kiwi", "limon", "frutilla", "melon", "sandia"},
				GenericWords: []string{"fruta", "frutas"},
				Subgroups: []domain.SubgroupSpec{
					{Name: "Naranja", Keywords: []string{"naranja", "naranjas"}},
					{Name: "Manzana", Keywords: []string{"manzana", "manzanas"}},
					{Name: "Banana", Keywords: []string{"banana", "bananas"}},
					{Name: "Pera", Keywords: []string{"pera", "peras"}},
					{Name: "Uva", Keywords: []string{"uva", "uvas"}},
					{Name: "Kiwi", Keywords: []string{"kiwi", "kiwis"}},
					{Name: "Limon", Keywords: []string{"limon", "limones"}},
					{Name: "Frutilla", Keywords: []string{"frutilla", "frutillas"}},
					{Name: "Melon", Keywords: []string{"melon", "melones"}},
					{Name: "Sandia", Keywords: []string{"sandia", "sandias"}},
				},
			},
			{
				Name:         "Verduras",
				Keywords:     []string{"tomate", "cebolla", "papa", "zanahoria", "lechuga", "espinaca", "morron", "berenjena", "pepino"},
				GenericWords: []string{"verdura", "verduras", "hortaliza"},
				Subgroups: []domain.SubgroupSpec{
					{Name: "Tomate", Keywords: []string{"tomate", "tomates"}},
					{Name: "Cebolla", Keywords: []string{"cebolla", "cebollas"}},
					{Name: "Papa", Keywords: []string{"papa", "papas"}, Exclude: []string{`\bpapaya\b`}},
					{Name: "Zanahoria", Keywords: []string{"zanahoria", "zanahorias"}},
					{Name: "Lechuga", Keywords: []string{"lechuga", "lechugas"}},
					{Name: "Espinaca", Keywords: []string{"espinaca", "espinacas"}},
					{Name: "Morron", Keywords: []string{"morron", "morrones"}},
					{Name: "Berenjena", Keywords: []string{"berenjena", "berenjenas"}},
					{Name: "Pepino", Keywords: []string{"pepino", "pepinos"}},
				},
			},
			{
				Name:         "Cereales",
				Keywords:     []string{"cereal", "granola", "avena", "trigo", "maiz", "copos", "muesli", "barrita"},
				GenericWords: []string{"cereal", "cereales"},
				Subgroups: []domain.SubgroupSpec{
					{Name: "Avena", Keywords: []string{"avena"}},
					{Name: "Granola", Keywords: []string{"granola", "muesli"}},
					{Name: "Copos", Keywords: []string{"copos", "corn flakes", "hojuelas"}},
					{Name: "Barrita", Keywords: []string{"barrita", "barritas", "barra de cereal"}},
					{Name: "Maiz", Keywords: []string{"maiz", "pororo"}},
				},
			},
			{
				Name:         "Huevos",
				Keywords:     []string{"huevo", "huevos", "codorniz"},
				GenericWords: []string{"huevo", "huevos"},
				Subgroups: []domain.SubgroupSpec{
					{Name: "Huevo Gallina", Keywords: []string{"huevo", "huevos", "gallina"}, Exclude: []string{`\bcodorniz\b`}},
					{Name: "Huevo Codorniz", Keywords: []string{"codorniz"}},
				},
			},
			{
				Name:         "Leches",
				Keywords:     []string{"leche", "yogur", "yogurt", "bebible", "condensada", "natalina"},
				GenericWords: []string{"leche", "lacteo", "yogur", "yogurt"},
				Subgroups: []domain.SubgroupSpec{
					{Name: "Leche Bebible", Keywords: []string{"leche", "bebible", "entera", "descremada", "deslactosada"}, Exclude: []string{`\b(condensada|polvo|chocolatada)\b`, `\bdulce de leche\b`}},
					{Name: "Yogur", Keywords: []string{"yogur", "yogurt"}},
					{Name: "Leche Condensada", Keywords: []string{"condensada"}},
					{Name: "Leche en Polvo", Keywords: []string{"polvo"}},
				},
			},
			{
				Name:         "Quesos",
				Keywords:     []string{"queso", "quesos", "rallado", "parmesano", "muzzarella", "mozzarella"},
				GenericWords: []string{"queso", "quesos"},
				Subgroups: []domain.SubgroupSpec{
					{Name: "Queso Sandwich", Keywords: []string{"sandwich", "sandwichero", "feteado"}},
					{Name: "Queso Paraguay", Keywords: []string{"paraguay"}},
					{Name: "Queso Rallado", Keywords: []string{"rallado", "parmesano"}},
					{Name: "Muzzarella", Keywords: []string{"muzzarella", "mozzarella"}},
				},
			},
		},
		FreshRules: []domain.FreshRule{
			{Tag: "Tomate fresco", Include: []string{"tomate", "tomates"}, Exclude: processedFormsPattern},
			{Tag: "Cebolla fresca", Include: []string{"cebolla", "cebollas"}, Exclude: processedFormsPattern},
			{Tag: "Papa fresca", Include: []string{"papa", "papas"}, Exclude: processedFormsPattern},
			{Tag: "Zanahoria fresca", Include: []string{"zanahoria", "zanahorias"}, Exclude: processedFormsPattern},
			{Tag: "Lechuga fresca", Include: []string{"lechuga", "lechugas"}, Exclude: processedFormsPattern},
			{Tag: "Morron fresco", Include: []string{"morron", "morrones"}, Exclude: processedFormsPattern},
			{Tag: "Naranja fresca", Include: []string{"naranja", "naranjas"}, Exclude: processedFormsPattern},
			{Tag: "Manzana fresca", Include: []string{"manzana", "manzanas"}, Exclude: processedFormsPattern},
			{Tag: "Banana fresca", Include: []string{"banana", "bananas"}, Exclude: processedFormsPattern},
			{Tag: "Limon fresco", Include: []string{"limon", "limones"}, Exclude: processedFormsPattern},
			{Tag: "Uva fresca", Include: []string{"uva", "uvas"}, Exclude: processedFormsPattern + `|\b(pasas?|vino)\b`},
			{Tag: "Frutilla fresca", Include: []string{"frutilla", "frutillas"}, Exclude: processedFormsPattern + `|\bleche\b`},
		},
	}
}

// Taxonomy is the compiled, read-only form of a TaxonomySpec.
// It is safe for concurrent use and never mutated after NewTaxonomy.
type Taxonomy struct {
	exclusions []*regexp.Regexp
	groups     []taxonomyGroup
	freshRules []freshRule
}

type taxonomyGroup struct {
	name         string
	keywords     []string
	genericWords []string
	exclude      []*regexp.Regexp
	subgroups    []taxonomySubgroup
}

type taxonomySubgroup struct {
	name     string
	keywords []string
	exclude  []*regexp.Regexp
}

type freshRule struct {
	tag     string
	include []string
	exclude *regexp.Regexp
}

// NewTaxonomy validates and compiles spec. Keywords are normalized the same
// way product names are, so "limón" and "limon" are equivalent.
func NewTaxonomy(spec domain.TaxonomySpec) (*Taxonomy, error) {
	if len(spec.Groups) == 0 {
		return nil, fmt.Errorf("taxonomy has no groups")
	}

	t := &Taxonomy{}

	var err error
	if t.exclusions, err = compilePatterns(spec.Exclusions); err != nil {
		return nil, fmt.Errorf("taxonomy exclusions: %w", err)
	}

	for _, g := range spec.Groups {
		if strings.TrimSpace(g.Name) == "" {
			return nil, fmt.Errorf("taxonomy group with empty name")
		}
		group := taxonomyGroup{
			name:         g.Name,
			keywords:     normalizeKeywords(g.Keywords),
			genericWords: normalizeKeywords(g.GenericWords),
		}
		if group.exclude, err = compilePatterns(g.Exclude); err != nil {
			return nil, fmt.Errorf("group %q: %w", g.Name, err)
		}
		for _, sg := range g.Subgroups {
			if strings.TrimSpace(sg.Name) == "" {
				return nil, fmt.Errorf("group %q: subgroup with empty name", g.Name)
			}
			sub := taxonomySubgroup{name: sg.Name, keywords: normalizeKeywords(sg.Keywords)}
			if sub.exclude, err = compilePatterns(sg.Exclude); err != nil {
				return nil, fmt.Errorf("subgroup %q: %w", sg.Name, err)
			}
			group.subgroups = append(group.subgroups, sub)
		}
		t.groups = append(t.groups, group)
	}

	for _, r := range spec.FreshRules {
		if r.Tag == "" || len(r.Include) == 0 {
			return nil, fmt.Errorf("fresh rule %q needs a tag and at least one include keyword", r.Tag)
		}
		rule := freshRule{tag: r.Tag, include: normalizeKeywords(r.Include)}
		if r.Exclude != "" {
			if rule.exclude, err = regexp.Compile(r.Exclude); err != nil {
				return nil, fmt.Errorf("fresh rule %q: %w", r.Tag, err)
			}
		}
		t.freshRules = append(t.freshRules, rule)
	}

	return t, nil
}

// DefaultTaxonomy compiles DefaultTaxonomySpec
func DefaultTaxonomy() *Taxonomy {
	t, err := NewTaxonomy(DefaultTaxonomySpec())
	if err != nil {
		panic(fmt.Sprintf("built-in taxonomy is invalid: %v", err))
	}
	return t
}

// GroupKeywords returns every broad group keyword, in declaration order and
// without duplicates. Fetchers use it to pick relevant category links.
func (t *Taxonomy) GroupKeywords() []string {
	seen := make(map[string]bool)
	var out []string
	for _, g := range t.groups {
		for _, kw := range g.keywords {
			if !seen[kw] {
				seen[kw] = true
				out = append(out, kw)
			}
		}
	}
	return out
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		out = append(out, re)
	}
	return out, nil
}

func normalizeKeywords(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.Join(strings.Fields(Normalize(w)), " ")
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}
