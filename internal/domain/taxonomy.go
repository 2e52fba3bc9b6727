package domain

// TaxonomySpec is the declarative form of the classification tables.
// Slices keep declaration order, which decides classifier ties.
type TaxonomySpec struct {
	// Exclusions are regular expressions rejecting non-grocery and promo bundle names
	Exclusions []string    `mapstructure:"exclusions" json:"exclusions"`
	Groups     []GroupSpec `mapstructure:"groups" json:"groups"`
	FreshRules []FreshRule `mapstructure:"fresh_rules" json:"freshRules"`
}

// GroupSpec declares a broad group with its subgroups
type GroupSpec struct {
	Name string `mapstructure:"name" json:"name"`
	// Keywords match non-selectively when no subgroup scores
	Keywords []string `mapstructure:"keywords" json:"keywords"`
	// GenericWords give a small bonus to every subgroup of the group
	GenericWords []string       `mapstructure:"generic_words" json:"genericWords"`
	Exclude      []string       `mapstructure:"exclude" json:"exclude"`
	Subgroups    []SubgroupSpec `mapstructure:"subgroups" json:"subgroups"`
}

// SubgroupSpec declares a subgroup and its scoring keywords
type SubgroupSpec struct {
	Name     string   `mapstructure:"name" json:"name"`
	Keywords []string `mapstructure:"keywords" json:"keywords"`
	Exclude  []string `mapstructure:"exclude" json:"exclude"`
}

// FreshRule tags unprocessed produce: any Include keyword present and the
// Exclude pattern absent.
type FreshRule struct {
	Tag     string   `mapstructure:"tag" json:"tag"`
	Include []string `mapstructure:"include" json:"include"`
	Exclude string   `mapstructure:"exclude" json:"exclude"`
}
