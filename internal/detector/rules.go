package detector

import (
	"regexp"

	"github.com/ppiankov/mssqlspectre/internal/models"
)

var (
	selectStarPattern = regexp.MustCompile(`(?i)\bSELECT\s+(?:DISTINCT\s+)?(?:TOP\s*\(?\s*\d+\s*\)?\s+)?\*\s+FROM\b`)
	noLockPattern     = regexp.MustCompile(`(?i)\bWITH\s*\(\s*NOLOCK\s*\)`)

	// Quoted digit strings on either side of a comparison operator.
	implicitConvLeftPattern  = regexp.MustCompile(`(?i)[\w\[\]\.]+\s*(?:=|<>|!=|>=|<=|>|<)\s*N?'\d+(?:\.\d+)?'`)
	implicitConvRightPattern = regexp.MustCompile(`(?i)N?'\d+(?:\.\d+)?'\s*(?:=|<>|!=|>=|<=|>|<)\s*[\w\[\]]`)

	whereClausePattern     = regexp.MustCompile(`(?i)\bWHERE\b(.*?)(?:\bGROUP\s+BY\b|\bORDER\s+BY\b|\bHAVING\b|\bUNION\b|$)`)
	wrappedColumnPattern   = regexp.MustCompile(`(?i)\b(?:UPPER|LOWER|LTRIM|RTRIM|TRIM|SUBSTRING|LEFT|RIGHT|CAST|CONVERT|YEAR|MONTH|DAY|DATEPART|DATEADD|DATEDIFF|ISNULL|COALESCE|ABS|ROUND|LEN|REPLACE|FORMAT)\s*\(`)
	leadingWildcardPattern = regexp.MustCompile(`(?i)\bLIKE\s+N?'[%_]`)

	distinctPattern = regexp.MustCompile(`(?i)\bSELECT\s+DISTINCT\b`)

	commaJoinPattern = regexp.MustCompile(`(?i)\bFROM\s+\[?\w+\]?(?:\s*\.\s*\[?\w+\]?)*(?:\s+(?:AS\s+)?\w+)?\s*,`)
	joinKeywordRe    = regexp.MustCompile(`(?i)\bJOIN\b`)

	projectionPattern     = regexp.MustCompile(`(?i)\bSELECT\b(?:\s+DISTINCT|\s+TOP\s*\(?\s*\d+\s*\)?(?:\s+PERCENT)?)*\s+(.*?)\bFROM\b`)
	scalarFunctionPattern = regexp.MustCompile(`(?i)\[?\w+\]?\s*\.\s*\[?\w+\]?\s*\(`)
)

func checkSelectStar(q string) *models.Issue {
	match := selectStarPattern.FindString(q)
	if match == "" {
		return nil
	}
	return &models.Issue{
		Type:        models.IssueSelectStar,
		Description: "Wildcard projection returns every column; list only the columns the caller needs",
		Fragment:    match,
		Severity:    models.SeverityWarning,
	}
}

func checkNoLockHint(q string) *models.Issue {
	match := noLockPattern.FindString(q)
	if match == "" {
		return nil
	}
	return &models.Issue{
		Type:        models.IssueNoLockHint,
		Description: "NOLOCK reads uncommitted data and can return duplicate or missing rows",
		Fragment:    match,
		Severity:    models.SeverityWarning,
	}
}

func checkImplicitConversion(q string) *models.Issue {
	match := implicitConvLeftPattern.FindString(q)
	if match == "" {
		if m := implicitConvRightPattern.FindString(q); m != "" {
			match = m
		}
	}
	if match == "" {
		return nil
	}
	return &models.Issue{
		Type:        models.IssueImplicitConversion,
		Description: "String literal compared against a numeric expression forces an implicit conversion and can defeat index seeks",
		Fragment:    match,
		Severity:    models.SeverityWarning,
	}
}

func checkNonSargable(q string) *models.Issue {
	if match := leadingWildcardPattern.FindString(q); match != "" {
		return &models.Issue{
			Type:        models.IssueNonSargablePredicate,
			Description: "LIKE pattern starting with a wildcard cannot use an index seek",
			Fragment:    match,
			Severity:    models.SeverityWarning,
		}
	}

	where := whereClausePattern.FindStringSubmatch(q)
	if where == nil {
		return nil
	}
	if match := wrappedColumnPattern.FindString(where[1]); match != "" {
		return &models.Issue{
			Type:        models.IssueNonSargablePredicate,
			Description: "Function applied to a column in a filter clause prevents index seeks on that column",
			Fragment:    match,
			Severity:    models.SeverityWarning,
		}
	}
	return nil
}

func checkDistinct(q string) *models.Issue {
	match := distinctPattern.FindString(q)
	if match == "" {
		return nil
	}
	return &models.Issue{
		Type:        models.IssueUnnecessaryDistinct,
		Description: "DISTINCT forces a sort or hash over the full result; verify duplicates are actually possible",
		Fragment:    match,
		Severity:    models.SeverityInfo,
	}
}

func checkCartesianJoin(q string) *models.Issue {
	if joinKeywordRe.MatchString(q) {
		return nil
	}
	match := commaJoinPattern.FindString(q)
	if match == "" {
		return nil
	}
	return &models.Issue{
		Type:        models.IssueCartesianJoin,
		Description: "Comma-separated table list without a JOIN produces a cartesian product candidate",
		Fragment:    match,
		Severity:    models.SeverityCritical,
	}
}

func checkScalarFunction(q string) *models.Issue {
	projection := projectionPattern.FindStringSubmatch(q)
	if projection == nil {
		return nil
	}
	match := scalarFunctionPattern.FindString(projection[1])
	if match == "" {
		return nil
	}
	return &models.Issue{
		Type:        models.IssueScalarFunction,
		Description: "Scalar function in the projection list executes once per row returned",
		Fragment:    match,
		Severity:    models.SeverityInfo,
	}
}
