package problem

import (
	"fmt"
	"strconv"
	"strings"
)

// comparison operators, longest first so "<=" wins over "<".
var comparisonOps = []string{"<=", ">=", "==", "=", "<", ">"}

// ParsedConstraint is the decomposed form of a constraint expression:
// left-hand arithmetic expression, comparison operator and numeric bound.
type ParsedConstraint struct {
	LHS        string
	Op         string
	Bound      float64
	References []string
}

// ParseConstraint splits a constraint expression around its comparison
// operator and scans the left-hand side for identifier references.
// Equality operators are rejected: the external optimizer interface only
// delegates nonlinear inequality constraints.
func ParseConstraint(expr string) (*ParsedConstraint, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("empty expression")
	}

	lhs, op, rhs, err := splitComparison(expr)
	if err != nil {
		return nil, err
	}
	if op == "=" || op == "==" {
		return nil, fmt.Errorf("equality constraints are not supported, use <= or >=")
	}

	bound, err := strconv.ParseFloat(strings.TrimSpace(rhs), 64)
	if err != nil {
		return nil, fmt.Errorf("bound %q is not numeric", strings.TrimSpace(rhs))
	}

	refs, err := scanIdentifiers(lhs)
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return nil, fmt.Errorf("expression references no variables")
	}

	return &ParsedConstraint{
		LHS:        strings.TrimSpace(lhs),
		Op:         op,
		Bound:      bound,
		References: refs,
	}, nil
}

// splitComparison finds exactly one comparison operator in expr.
func splitComparison(expr string) (lhs, op, rhs string, err error) {
	idx := -1
	for _, candidate := range comparisonOps {
		i := strings.Index(expr, candidate)
		if i < 0 {
			continue
		}
		if idx >= 0 {
			// Matches inside the already-found operator ("=" within "<=")
			// are the same token; anything else means the expression is
			// malformed (e.g. "a < b < c").
			if i < idx || i >= idx+len(op) {
				return "", "", "", fmt.Errorf("multiple comparison operators in %q", expr)
			}
			continue
		}
		idx = i
		op = candidate
	}
	if idx < 0 {
		return "", "", "", fmt.Errorf("no comparison operator in %q", expr)
	}
	lhs = expr[:idx]
	rhs = expr[idx+len(op):]
	if strings.ContainsAny(rhs, "<>=") {
		return "", "", "", fmt.Errorf("multiple comparison operators in %q", expr)
	}
	if strings.TrimSpace(lhs) == "" {
		return "", "", "", fmt.Errorf("missing left-hand side in %q", expr)
	}
	if strings.TrimSpace(rhs) == "" {
		return "", "", "", fmt.Errorf("missing bound in %q", expr)
	}
	return lhs, op, rhs, nil
}

// scanIdentifiers walks an arithmetic expression and collects identifier
// references in order of first appearance. Identifiers are dotted names
// like "textbook.x1". Numbers (including scientific notation), the
// operators + - * / ** and parentheses are skipped; anything else is an
// error.
func scanIdentifiers(expr string) ([]string, error) {
	var refs []string
	seen := make(map[string]bool)

	runes := []rune(expr)
	i := 0
	for i < len(runes) {
		c := runes[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '+' || c == '-' || c == '*' || c == '/' || c == '(' || c == ')':
			i++
		case c >= '0' && c <= '9' || c == '.':
			i = scanNumber(runes, i)
		case isIdentStart(c):
			start := i
			for i < len(runes) && isIdentPart(runes[i]) {
				i++
			}
			name := string(runes[start:i])
			if !seen[name] {
				seen[name] = true
				refs = append(refs, name)
			}
		default:
			return nil, fmt.Errorf("unexpected character %q in expression", string(c))
		}
	}
	return refs, nil
}

// scanNumber consumes a numeric literal starting at i and returns the
// index after it. Handles decimals and scientific notation (1e-5).
func scanNumber(runes []rune, i int) int {
	for i < len(runes) && (runes[i] >= '0' && runes[i] <= '9' || runes[i] == '.') {
		i++
	}
	if i < len(runes) && (runes[i] == 'e' || runes[i] == 'E') {
		j := i + 1
		if j < len(runes) && (runes[j] == '+' || runes[j] == '-') {
			j++
		}
		if j < len(runes) && runes[j] >= '0' && runes[j] <= '9' {
			i = j
			for i < len(runes) && runes[i] >= '0' && runes[i] <= '9' {
				i++
			}
		}
	}
	return i
}

func isIdentStart(c rune) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isIdentPart(c rune) bool {
	return isIdentStart(c) || c == '.' || c >= '0' && c <= '9'
}
