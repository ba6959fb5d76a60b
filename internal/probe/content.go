package probe

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/oliveagle/jsonpath"
	"github.com/sentinelhq/domainwatch/internal/model"
)

// EvaluateContentRules applies JSONPath assertions to an HTTPS response
// body. A failed assertion yields a medium content issue; a rule that
// cannot be evaluated (bad JSON, missing path) yields a low one.
func EvaluateContentRules(rules []model.ContentRule, body string) []model.Issue {
	if len(rules) == 0 {
		return nil
	}

	var jsonData interface{}
	if err := json.Unmarshal([]byte(body), &jsonData); err != nil {
		return []model.Issue{{
			Type:     model.IssueContent,
			Severity: model.SeverityLow,
			Message:  fmt.Sprintf("response body is not valid JSON: %v", err),
		}}
	}

	var issues []model.Issue
	for _, rule := range rules {
		if issue := evaluateRule(rule, jsonData); issue != nil {
			issues = append(issues, *issue)
		}
	}
	return issues
}

func evaluateRule(rule model.ContentRule, jsonData interface{}) *model.Issue {
	pattern, err := jsonpath.Compile(rule.Expression)
	if err != nil {
		return &model.Issue{
			Type:     model.IssueContent,
			Severity: model.SeverityLow,
			Message:  fmt.Sprintf("rule %q: invalid JSONPath expression: %v", rule.Name, err),
		}
	}

	value, err := pattern.Lookup(jsonData)

	if rule.Operator == "exists" {
		if err != nil {
			return &model.Issue{
				Type:     model.IssueContent,
				Severity: model.SeverityMedium,
				Message:  fmt.Sprintf("rule %q: expression %s matched nothing", rule.Name, rule.Expression),
			}
		}
		return nil
	}

	if err != nil {
		return &model.Issue{
			Type:     model.IssueContent,
			Severity: model.SeverityLow,
			Message:  fmt.Sprintf("rule %q: lookup failed: %v", rule.Name, err),
		}
	}

	got := fmt.Sprint(value)
	want := fmt.Sprint(rule.Expected)

	matched := false
	switch rule.Operator {
	case "eq":
		matched = got == want
	case "ne":
		matched = got != want
	case "contains":
		matched = strings.Contains(got, want)
	}

	if !matched {
		return &model.Issue{
			Type:     model.IssueContent,
			Severity: model.SeverityMedium,
			Message: fmt.Sprintf("rule %q: got %q, operator %s, expected %q",
				rule.Name, got, rule.Operator, want),
		}
	}
	return nil
}
