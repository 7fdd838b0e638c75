package prompt

import (
	"regexp"
)

var variablePattern = regexp.MustCompile(`\{(\w+)\}`)

// Render replaces {variable} placeholders with values from vars. Placeholders
// without a value are left in place literally.
func Render(template string, vars map[string]string) string {
	return variablePattern.ReplaceAllStringFunc(template, func(match string) string {
		key := match[1 : len(match)-1] // strip { and }
		if val, ok := vars[key]; ok {
			return val
		}
		return match
	})
}

// BrandVars returns the standard variables of the audit battery.
func BrandVars(brand, category string) map[string]string {
	return map[string]string{
		"brand":    brand,
		"category": category,
	}
}

// ExtractVariables returns the distinct variable names found in the template.
func ExtractVariables(template string) []string {
	matches := variablePattern.FindAllStringSubmatch(template, -1)
	seen := make(map[string]bool)
	var vars []string
	for _, m := range matches {
		if len(m) > 1 && !seen[m[1]] {
			vars = append(vars, m[1])
			seen[m[1]] = true
		}
	}
	return vars
}
