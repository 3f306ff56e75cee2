package core

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/Knetic/govaluate"
	"github.com/PaesslerAG/jsonpath"
)

// Rule defines a condition evaluated against a webhook change value.
type Rule struct {
	// ID is an optional identifier for the rule.
	ID string `yaml:"id"`
	// When is a govaluate expression. Bare identifiers and $-prefixed
	// JSONPath tokens resolve against the change value.
	When string `yaml:"when"`
}

// RulesConfig configures a RuleEngine.
type RulesConfig struct {
	Rules  []Rule
	Logger *log.Logger
}

// MatchedRule is a rule whose expression evaluated to true.
type MatchedRule struct {
	ID   string
	When string
}

type compiledRule struct {
	id     string
	when   string
	vars   []string
	varMap map[string]string
	expr   *govaluate.EvaluableExpression
}

// RuleEngine evaluates change values against a set of rules.
type RuleEngine struct {
	mu     sync.RWMutex
	rules  []compiledRule
	logger *log.Logger
}

// NewRuleEngine compiles the configured rules.
func NewRuleEngine(cfg RulesConfig) (*RuleEngine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	engine := &RuleEngine{logger: logger}
	if err := engine.Update(cfg.Rules); err != nil {
		return nil, err
	}
	return engine, nil
}

// Update replaces the rule set.
func (r *RuleEngine) Update(rules []Rule) error {
	compiled := make([]compiledRule, 0, len(rules))
	for _, rule := range rules {
		rewritten, varMap := rewriteExpression(rule.When)
		expr, err := govaluate.NewEvaluableExpressionWithFunctions(rewritten, ruleFunctions())
		if err != nil {
			return fmt.Errorf("compile rule %q: %w", rule.When, err)
		}
		id := strings.TrimSpace(rule.ID)
		if id == "" {
			id = ruleIDFromWhen(rule.When)
		}
		compiled = append(compiled, compiledRule{
			id:     id,
			when:   rule.When,
			vars:   expr.Vars(),
			varMap: varMap,
			expr:   expr,
		})
	}
	r.mu.Lock()
	r.rules = compiled
	r.mu.Unlock()
	return nil
}

// Len returns the number of compiled rules.
func (r *RuleEngine) Len() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rules)
}

// Match returns the first rule that evaluates to true for value.
// Evaluation errors are logged and treated as no match.
func (r *RuleEngine) Match(value interface{}, logger *log.Logger) (MatchedRule, bool) {
	if r == nil {
		return MatchedRule{}, false
	}
	if logger == nil {
		logger = r.logger
	}
	r.mu.RLock()
	rules := r.rules
	r.mu.RUnlock()
	for _, rule := range rules {
		params := resolveRuleParams(logger, value, rule.vars, rule.varMap)
		result, err := rule.expr.Evaluate(params)
		if err != nil {
			logger.Printf("rule eval failed id=%s err=%v", rule.id, err)
			continue
		}
		if ok, _ := result.(bool); ok {
			return MatchedRule{ID: rule.id, When: rule.when}, true
		}
	}
	return MatchedRule{}, false
}

func resolveRuleParams(logger *log.Logger, value interface{}, vars []string, varMap map[string]string) map[string]interface{} {
	params := make(map[string]interface{}, len(vars))
	for _, name := range vars {
		path, ok := varMap[name]
		if !ok {
			path = "$." + name
		}
		resolved, err := jsonpath.Get(path, value)
		if err != nil {
			if logger != nil {
				logger.Printf("rule warn: jsonpath no match path=%s", path)
			}
			params[name] = nil
			continue
		}
		params[name] = normalizeJSONPathResult(resolved)
	}
	return params
}

func normalizeJSONPathResult(value interface{}) interface{} {
	items, ok := value.([]interface{})
	if !ok {
		return value
	}
	switch len(items) {
	case 0:
		return nil
	case 1:
		return items[0]
	default:
		return items
	}
}

func ruleIDFromWhen(when string) string {
	sum := sha1.Sum([]byte(strings.TrimSpace(when)))
	return "rule_" + hex.EncodeToString(sum[:])[:12]
}

func normalizeRules(rules []Rule) ([]Rule, error) {
	out := make([]Rule, 0, len(rules))
	for i := range rules {
		rule := rules[i]
		rule.ID = strings.TrimSpace(rule.ID)
		rule.When = strings.TrimSpace(rule.When)
		if rule.When == "" {
			return nil, fmt.Errorf("skip rule %d is missing when", i)
		}
		out = append(out, rule)
	}
	return out, nil
}
