// Package scoring computes lead scores from configurable expression rules.
package scoring

import (
	"context"
	"fmt"
	"strings"

	"github.com/enterprisecrm/backend/internal/domain/crm"
	"github.com/enterprisecrm/backend/internal/infrastructure/config"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Rule adds Points to a lead's score when Expression evaluates to true
type Rule struct {
	Name       string
	Expression string
	Points     int
}

// LeadEnv is the environment rule expressions are evaluated against
type LeadEnv struct {
	FirstName  string `expr:"first_name"`
	LastName   string `expr:"last_name"`
	Email      string `expr:"email"`
	Phone      string `expr:"phone"`
	Company    string `expr:"company"`
	Title      string `expr:"title"`
	Source     string `expr:"source"`
	Status     string `expr:"status"`
	Notes      string `expr:"notes"`
	HasEmail   bool   `expr:"has_email"`
	HasPhone   bool   `expr:"has_phone"`
	HasCompany bool   `expr:"has_company"`
	HasOwner   bool   `expr:"has_owner"`
}

// NewLeadEnv builds the evaluation environment for a lead
func NewLeadEnv(lead *crm.Lead) LeadEnv {
	return LeadEnv{
		FirstName:  lead.FirstName,
		LastName:   lead.LastName,
		Email:      lead.Email,
		Phone:      lead.Phone,
		Company:    lead.Company,
		Title:      lead.Title,
		Source:     string(lead.Source),
		Status:     string(lead.Status),
		Notes:      lead.Notes,
		HasEmail:   lead.Email != "",
		HasPhone:   lead.Phone != "",
		HasCompany: lead.Company != "",
		HasOwner:   lead.OwnerID != nil,
	}
}

type compiledRule struct {
	Rule
	program *vm.Program
}

// Engine scores leads. Rules are compiled once when the engine is built.
type Engine struct {
	rules []compiledRule
}

// DefaultRules are used when no rules are configured
func DefaultRules() []Rule {
	return []Rule{
		{Name: "has_email", Expression: "has_email", Points: 10},
		{Name: "business_email", Expression: `has_email && domain(email) not in ["gmail.com", "yahoo.com", "hotmail.com", "outlook.com"]`, Points: 15},
		{Name: "has_phone", Expression: "has_phone", Points: 10},
		{Name: "has_company", Expression: "has_company", Points: 15},
		{Name: "decision_maker", Expression: `lower(title) matches "(chief|ceo|cto|cfo|vp|director|head)"`, Points: 20},
		{Name: "referral", Expression: `source == "referral" || source == "partner"`, Points: 20},
		{Name: "event", Expression: `source == "event"`, Points: 10},
	}
}

// RulesFromConfig converts configured rules, falling back to DefaultRules
func RulesFromConfig(cfg config.ScoringConfig) []Rule {
	if len(cfg.Rules) == 0 {
		return DefaultRules()
	}
	rules := make([]Rule, len(cfg.Rules))
	for i, r := range cfg.Rules {
		rules[i] = Rule{Name: r.Name, Expression: r.Expression, Points: r.Points}
	}
	return rules
}

// NewEngine compiles the rules. Any rule that does not compile to a boolean
// expression over LeadEnv is rejected.
func NewEngine(rules []Rule) (*Engine, error) {
	options := []expr.Option{
		expr.Env(LeadEnv{}),
		expr.AsBool(),
		expr.Function("domain", domainOf, new(func(string) string)),
	}

	engine := &Engine{rules: make([]compiledRule, 0, len(rules))}
	for _, rule := range rules {
		program, err := expr.Compile(rule.Expression, options...)
		if err != nil {
			return nil, fmt.Errorf("scoring rule %q: %w", rule.Name, err)
		}
		engine.rules = append(engine.rules, compiledRule{Rule: rule, program: program})
	}
	return engine, nil
}

// Score sums the points of every matching rule, clamped to the lead score range
func (e *Engine) Score(ctx context.Context, lead *crm.Lead) (int, error) {
	env := NewLeadEnv(lead)
	score := 0
	for _, rule := range e.rules {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		out, err := expr.Run(rule.program, env)
		if err != nil {
			return 0, fmt.Errorf("scoring rule %q: %w", rule.Name, err)
		}
		if matched, _ := out.(bool); matched {
			score += rule.Points
		}
	}
	return max(crm.MinLeadScore, min(crm.MaxLeadScore, score)), nil
}

// Rules returns the configured rules
func (e *Engine) Rules() []Rule {
	rules := make([]Rule, len(e.rules))
	for i, r := range e.rules {
		rules[i] = r.Rule
	}
	return rules
}

func domainOf(params ...any) (any, error) {
	email, _ := params[0].(string)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return "", nil
	}
	return strings.ToLower(email[at+1:]), nil
}

var _ crm.LeadScorer = (*Engine)(nil)
