package usecase

import (
	"regexp"
	"strings"
)

// Keyword scoring
const (
	wholeWordScore   = 3 // keyword equals a token run of the name
	substringScore   = 1 // keyword only appears inside a longer word
	genericWordBonus = 1 // group noun present ("fruta", "queso"), only for pairs that already scored
)

// Classifier assigns taxonomy group, subgroup and fresh tag to product names
type Classifier struct {
	taxonomy *Taxonomy
}

// NewClassifier creates a classifier over an immutable taxonomy
func NewClassifier(taxonomy *Taxonomy) *Classifier {
	return &Classifier{taxonomy: taxonomy}
}

// classifierInput is a product name prepared once for all rule evaluations
type classifierInput struct {
	text   string // normalized full name
	padded string // tokens joined by single spaces, padded on both ends
	tokens map[string]bool
}

func prepareInput(name string) classifierInput {
	tokens := Tokenize(name)
	set := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		set[tok] = true
	}
	return classifierInput{
		text:   Normalize(name),
		padded: " " + strings.Join(tokens, " ") + " ",
		tokens: set,
	}
}

// hasWord reports whether keyword occurs as whole word(s) in the name
func (in classifierInput) hasWord(keyword string) bool {
	if !strings.Contains(keyword, " ") {
		return in.tokens[keyword]
	}
	return strings.Contains(in.padded, " "+keyword+" ")
}

// IsExcluded reports whether the name is a promotional bundle or non-grocery item
func (c *Classifier) IsExcluded(name string) bool {
	return matchesAny(c.taxonomy.exclusions, Normalize(name))
}

// AssignGroup returns the best scoring (group, subgroup) pair for name.
// The strictly highest score wins and ties keep the first declared pair.
// When no pair scores, the first group with a matching broad keyword is
// returned with an empty subgroup. ok is false when nothing matches at all.
func (c *Classifier) AssignGroup(name string) (group, subgroup string, ok bool) {
	in := prepareInput(name)

	bestScore := 0
	for _, g := range c.taxonomy.groups {
		if matchesAny(g.exclude, in.text) {
			continue
		}
		bonus := 0
		for _, w := range g.genericWords {
			if in.hasWord(w) {
				bonus += genericWordBonus
			}
		}
		for _, sg := range g.subgroups {
			if matchesAny(sg.exclude, in.text) {
				continue
			}
			score := keywordScore(in, sg.keywords)
			if score == 0 {
				continue
			}
			score += bonus
			if score > bestScore {
				bestScore = score
				group, subgroup = g.name, sg.name
			}
		}
	}
	if bestScore > 0 {
		return group, subgroup, true
	}

	for _, g := range c.taxonomy.groups {
		if matchesAny(g.exclude, in.text) {
			continue
		}
		for _, kw := range g.keywords {
			if in.hasWord(kw) {
				return g.name, "", true
			}
		}
	}
	return "", "", false
}

// FreshTag returns the tag of the first fresh rule whose include keywords
// appear in name and whose exclusion pattern does not. Empty when none applies.
func (c *Classifier) FreshTag(name string) string {
	in := prepareInput(name)
	for _, rule := range c.taxonomy.freshRules {
		included := false
		for _, kw := range rule.include {
			if in.hasWord(kw) {
				included = true
				break
			}
		}
		if !included {
			continue
		}
		if rule.exclude != nil && rule.exclude.MatchString(in.text) {
			continue
		}
		return rule.tag
	}
	return ""
}

func keywordScore(in classifierInput, keywords []string) int {
	score := 0
	for _, kw := range keywords {
		switch {
		case in.hasWord(kw):
			score += wholeWordScore
		case strings.Contains(in.text, kw):
			score += substringScore
		}
	}
	return score
}

func matchesAny(patterns []*regexp.Regexp, text string) bool {
	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
