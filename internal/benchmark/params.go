package benchmark

import "regexp"

var (
	likeNamedParamPattern      = regexp.MustCompile(`(?i)(\bLIKE\s+)@\w+`)
	likePositionalParamPattern = regexp.MustCompile(`(?i)(\bLIKE\s+)\?`)
	namedParamPattern          = regexp.MustCompile(`@@\w+|@\w+`)
	positionalParamPattern     = regexp.MustCompile(`\?`)
)

// SubstituteParameters replaces every parameter placeholder with a literal
// dummy value so the statement can execute standalone: placeholders inside a
// LIKE predicate become the string literal '1', all others the numeric
// literal 1. System variables (@@ROWCOUNT and friends) are left alone.
//
// The dummy values can change which rows match, so measured row counts may
// differ from production parameter values. That is part of the benchmarking
// contract, not something to correct here.
func SubstituteParameters(query string) string {
	s := likeNamedParamPattern.ReplaceAllString(query, "${1}'1'")
	s = likePositionalParamPattern.ReplaceAllString(s, "${1}'1'")
	s = namedParamPattern.ReplaceAllStringFunc(s, func(match string) string {
		if len(match) > 1 && match[1] == '@' {
			return match // system variable
		}
		return "1"
	})
	return positionalParamPattern.ReplaceAllString(s, "1")
}
