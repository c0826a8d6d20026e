package rules

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	sigma "github.com/bradleyjkemp/sigma-go"
	sigmaevaluator "github.com/bradleyjkemp/sigma-go/evaluator"

	"alertgraph/pkg/models"
)

var techniqueTag = regexp.MustCompile(`^t\d{4}(?:\.\d{3})?$`)

// SigmaLoadStats counts loaded and skipped rule files.
type SigmaLoadStats struct {
	TotalFiles        int
	Loaded            int
	SkippedComplex    int
	SkippedDatasource int
	SkippedInvalid    int
}

type sigmaRule struct {
	eval *sigmaevaluator.RuleEvaluator
	tag  models.IoaTag
}

// SigmaEngine matches single-alert Sigma rules against parsed IDS alerts.
type SigmaEngine struct {
	rules []sigmaRule
}

// NewSigmaEngine loads rules from a YAML file or a directory tree. Rules that
// target other log sources or need more than one event are skipped and
// counted.
func NewSigmaEngine(path string) (*SigmaEngine, SigmaLoadStats, error) {
	var stats SigmaLoadStats

	files, err := ruleFiles(path)
	if err != nil {
		return nil, stats, err
	}
	stats.TotalFiles = len(files)

	engine := &SigmaEngine{rules: make([]sigmaRule, 0, len(files))}
	for _, file := range files {
		raw, err := os.ReadFile(file)
		if err != nil {
			stats.SkippedInvalid++
			continue
		}
		rule, err := sigma.ParseRule(raw)
		if err != nil {
			stats.SkippedInvalid++
			continue
		}
		if !matchesAlertLog(rule.Logsource) {
			stats.SkippedDatasource++
			continue
		}
		if !singleEvent(rule.Detection) {
			stats.SkippedComplex++
			continue
		}
		engine.rules = append(engine.rules, sigmaRule{
			eval: sigmaevaluator.ForRule(rule),
			tag:  tagFor(rule),
		})
		stats.Loaded++
	}
	return engine, stats, nil
}

// Apply returns a tag for every rule the alert matches.
func (e *SigmaEngine) Apply(event *models.AlertEvent) []models.IoaTag {
	if e == nil || event == nil || len(e.rules) == 0 {
		return nil
	}

	fields := make(map[string]interface{}, len(models.FieldNames))
	for _, name := range models.FieldNames {
		if v := event.Field(name); v != "" {
			fields[name] = v
		}
	}

	var tags []models.IoaTag
	seen := make(map[string]struct{})
	ctx := context.Background()
	for _, r := range e.rules {
		if _, dup := seen[r.tag.Key()]; dup {
			continue
		}
		res, err := r.eval.Matches(ctx, fields)
		if err != nil || !res.Match {
			continue
		}
		seen[r.tag.Key()] = struct{}{}
		tags = append(tags, r.tag)
	}
	return tags
}

// Len reports the number of loaded rules.
func (e *SigmaEngine) Len() int {
	if e == nil {
		return 0
	}
	return len(e.rules)
}

func ruleFiles(path string) ([]string, error) {
	root, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve rule path: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat rule path: %w", err)
	}
	if !info.IsDir() {
		if !isYAML(root) {
			return nil, fmt.Errorf("rule file must end with .yml or .yaml: %s", root)
		}
		return []string{root}, nil
	}

	var files []string
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.IsDir() && isYAML(p) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk rule directory: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yml" || ext == ".yaml"
}

func matchesAlertLog(src sigma.Logsource) bool {
	norm := func(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

	switch norm(src.Product) {
	case "", "suricata", "ids":
	default:
		return false
	}
	switch norm(src.Service) {
	case "", "suricata", "fast", "alert":
	default:
		return false
	}
	c := norm(src.Category)
	return c == "" || c == "ids"
}

func singleEvent(d sigma.Detection) bool {
	if d.Timeframe > 0 {
		return false
	}
	for _, cond := range d.Conditions {
		if cond.Aggregation != nil || !plainExpr(cond.Search) {
			return false
		}
	}
	for _, search := range d.Searches {
		if len(search.Keywords) > 0 || len(search.EventMatchers) == 0 {
			return false
		}
	}
	return true
}

func plainExpr(expr sigma.SearchExpr) bool {
	switch e := expr.(type) {
	case sigma.SearchIdentifier:
		return true
	case sigma.Not:
		return plainExpr(e.Expr)
	case sigma.And:
		for _, child := range e {
			if !plainExpr(child) {
				return false
			}
		}
		return true
	case sigma.Or:
		for _, child := range e {
			if !plainExpr(child) {
				return false
			}
		}
		return true
	}
	return false
}

func tagFor(rule sigma.Rule) models.IoaTag {
	tag := models.IoaTag{
		ID:       strings.TrimSpace(rule.ID),
		Name:     strings.TrimSpace(rule.Title),
		Severity: strings.ToLower(strings.TrimSpace(rule.Level)),
	}
	if tag.ID == "" {
		tag.ID = tag.Name
	}
	if tag.Severity == "" {
		tag.Severity = "medium"
	}

	for _, raw := range rule.Tags {
		t := strings.ToLower(strings.TrimSpace(raw))
		name, ok := strings.CutPrefix(t, "attack.")
		if !ok {
			continue
		}
		if techniqueTag.MatchString(name) {
			if tag.Technique == "" {
				tag.Technique = strings.ToUpper(strings.ReplaceAll(name, ".", "/"))
			}
			continue
		}
		if tag.Tactic == "" {
			tag.Tactic = strings.ReplaceAll(name, "_", "-")
		}
	}
	return tag
}
