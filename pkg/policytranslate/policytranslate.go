// Package policytranslate declares the natural-language-to-policy-rule
// translation contract named as an external collaborator in spec.md §1.
// Only the interface and a deterministic local stand-in live here; a real
// translator is thin glue over an LLM, out of this module's scope.
package policytranslate

import (
	"context"
	"fmt"
	"strings"

	"github.com/kikokikok/aeterna-sub000/pkg/metapolicy"
)

// Rule is one translated policy statement: an action gated by a minimum
// role and/or a risk ceiling.
type Rule struct {
	Action  metapolicy.ActionType
	MinRole metapolicy.RoleLevel
	Risk    metapolicy.RiskLevel
}

// Translator turns a natural-language policy description into structured
// Rules the meta-governance engine can evaluate.
type Translator interface {
	Translate(ctx context.Context, text string) ([]Rule, error)
}

// KeywordTranslator is a deterministic, non-LLM stand-in: it recognizes a
// handful of literal phrasings of the form "require <role> for <action>"
// and "restrict <action> above <risk>". It exists so `policy translate`
// has something to call without wiring a model; a production translator
// would implement Translator against an LLM the way pkg/llmhook does.
type KeywordTranslator struct{}

func NewKeywordTranslator() *KeywordTranslator { return &KeywordTranslator{} }

func (KeywordTranslator) Translate(_ context.Context, text string) ([]Rule, error) {
	var rules []Rule
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.ToLower(line))
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "require "):
			rest := strings.TrimPrefix(line, "require ")
			parts := strings.SplitN(rest, " for ", 2)
			if len(parts) != 2 {
				return nil, fmt.Errorf("policytranslate: cannot parse %q", line)
			}
			role, err := metapolicy.ParseRoleLevel(strings.TrimSpace(parts[0]))
			if err != nil {
				return nil, fmt.Errorf("policytranslate: %w", err)
			}
			rules = append(rules, Rule{Action: metapolicy.ActionType(strings.TrimSpace(parts[1])), MinRole: role})
		case strings.HasPrefix(line, "restrict "):
			rest := strings.TrimPrefix(line, "restrict ")
			parts := strings.SplitN(rest, " above ", 2)
			if len(parts) != 2 {
				return nil, fmt.Errorf("policytranslate: cannot parse %q", line)
			}
			rules = append(rules, Rule{
				Action: metapolicy.ActionType(strings.TrimSpace(parts[0])),
				Risk:   metapolicy.RiskLevel(strings.TrimSpace(parts[1])),
			})
		default:
			return nil, fmt.Errorf("policytranslate: unrecognized statement %q", line)
		}
	}
	return rules, nil
}
