// Package rules rewrites exported transcripts with deterministic substitutions.
//
// A rules file holds one rule per line:
//
//	pull request => PR            literal, case-insensitive
//	s/\bdeep\s*mind\b/DeepMind/g  sed-style regex with i, g, m, s flags
//	@model um, =>                 any rule may be scoped to a transcript role
//
// Blank lines and lines starting with # are ignored.
package rules

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

const defaultPassLimit = 30

// transcriptLabels maps rendered "Label: text" prefixes to rule scopes.
var transcriptLabels = map[string]string{
	"User":  "user",
	"Model": "model",
	"Tool":  "tool",
}

type rewriter interface {
	rewrite(input string) (output string, changed bool)
}

type rule struct {
	scope string
	rewriter
}

func (r rule) appliesTo(scope string) bool {
	return r.scope == "" || r.scope == scope
}

// Engine applies substitution rules to transcripts.
type Engine struct {
	rules     []rule
	passLimit int
}

// NewEngine loads rules from path. A missing file or empty path yields an
// engine that returns text unchanged.
func NewEngine(path string, passLimit int) (*Engine, error) {
	if passLimit <= 0 {
		passLimit = defaultPassLimit
	}
	if strings.TrimSpace(path) == "" {
		return &Engine{passLimit: passLimit}, nil
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Engine{passLimit: passLimit}, nil
		}
		return nil, fmt.Errorf("failed to read rules file %q: %w", path, err)
	}

	parsed, err := Parse(string(contents))
	if err != nil {
		return nil, fmt.Errorf("failed to parse rules file %q: %w", path, err)
	}
	return &Engine{rules: parsed.rules, passLimit: passLimit}, nil
}

// Parse compiles rules from text. The returned engine uses the default pass limit.
func Parse(contents string) (*Engine, error) {
	var out []rule
	for index, raw := range strings.Split(contents, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		r, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", index+1, err)
		}
		out = append(out, r)
	}
	return &Engine{rules: out, passLimit: defaultPassLimit}, nil
}

// Apply rewrites each transcript line. Lines rendered as "User: ...",
// "Model: ..." or "Tool: ..." get unscoped rules plus rules scoped to that
// role, applied to the text after the label; other lines get unscoped rules.
func (e *Engine) Apply(text string) (string, error) {
	if len(e.rules) == 0 {
		return text, nil
	}

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		label, body, scope := splitLabel(line)
		lines[i] = label + e.applyScoped(body, scope)
	}
	return strings.Join(lines, "\n"), nil
}

func (e *Engine) applyScoped(text string, scope string) string {
	for pass := 0; pass < e.passLimit; pass++ {
		changed := false
		for _, r := range e.rules {
			if !r.appliesTo(scope) {
				continue
			}
			if next, ok := r.rewrite(text); ok {
				text = next
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return text
}

func splitLabel(line string) (label string, body string, scope string) {
	name, rest, ok := strings.Cut(line, ": ")
	if !ok {
		return "", line, ""
	}
	scope, known := transcriptLabels[name]
	if !known {
		return "", line, ""
	}
	return name + ": ", rest, scope
}

func parseLine(line string) (rule, error) {
	scope := ""
	if strings.HasPrefix(line, "@") {
		name, rest, ok := strings.Cut(line[1:], " ")
		if !ok {
			return rule{}, errors.New("scope must be followed by a rule")
		}
		scope = strings.ToLower(name)
		if scope != "user" && scope != "model" && scope != "tool" {
			return rule{}, fmt.Errorf("unknown scope %q", name)
		}
		line = strings.TrimSpace(rest)
	}

	var (
		rw  rewriter
		err error
	)
	switch {
	case isSubstitution(line):
		rw, err = parseSubstitution(line)
	case strings.Contains(line, "=>"):
		rw, err = parseLiteral(line)
	default:
		err = errors.New("unsupported rule format")
	}
	if err != nil {
		return rule{}, err
	}
	return rule{scope: scope, rewriter: rw}, nil
}

type literal struct {
	re          *regexp.Regexp
	replacement string
}

func parseLiteral(line string) (rewriter, error) {
	from, to, _ := strings.Cut(line, "=>")
	from = strings.TrimSpace(from)
	if from == "" {
		return nil, errors.New("literal rule source cannot be empty")
	}
	re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(from))
	if err != nil {
		return nil, fmt.Errorf("invalid literal source: %w", err)
	}
	return literal{re: re, replacement: strings.TrimSpace(to)}, nil
}

func (l literal) rewrite(input string) (string, bool) {
	output := l.re.ReplaceAllLiteralString(input, l.replacement)
	return output, output != input
}

type substitution struct {
	re          *regexp.Regexp
	replacement string
	global      bool
}

func isSubstitution(line string) bool {
	return len(line) > 1 && line[0] == 's' && !isWordOrSpace(line[1])
}

// parseSubstitution reads s<d>pattern<d>replacement<d>flags. Matching is
// case-insensitive unless the pattern says otherwise.
func parseSubstitution(line string) (rewriter, error) {
	delim := line[1]
	pattern, next, err := readDelimited(line, 2, delim)
	if err != nil {
		return nil, fmt.Errorf("invalid regex pattern: %w", err)
	}
	replacement, next, err := readDelimited(line, next, delim)
	if err != nil {
		return nil, fmt.Errorf("invalid regex replacement: %w", err)
	}

	inline := "i"
	global := false
	for _, flag := range strings.ReplaceAll(line[next:], " ", "") {
		switch flag {
		case 'g':
			global = true
		case 'i':
		case 'm', 's':
			if !strings.ContainsRune(inline, flag) {
				inline += string(flag)
			}
		default:
			return nil, fmt.Errorf("unsupported regex flag %q", flag)
		}
	}

	re, err := regexp.Compile("(?" + inline + ")" + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex: %w", err)
	}
	return substitution{re: re, replacement: replacement, global: global}, nil
}

func (s substitution) rewrite(input string) (string, bool) {
	if s.global {
		output := s.re.ReplaceAllString(input, s.replacement)
		return output, output != input
	}

	loc := s.re.FindStringSubmatchIndex(input)
	if loc == nil {
		return input, false
	}
	expanded := s.re.ExpandString(nil, s.replacement, input, loc)
	output := input[:loc[0]] + string(expanded) + input[loc[1]:]
	return output, output != input
}

// readDelimited returns the text up to the next unescaped delim and the
// index just past it. Escapes are kept for the regexp compiler.
func readDelimited(line string, start int, delim byte) (string, int, error) {
	var b strings.Builder
	for i := start; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '\\' && i+1 < len(line):
			if line[i+1] == delim {
				b.WriteByte(delim)
			} else {
				b.WriteByte(c)
				b.WriteByte(line[i+1])
			}
			i++
		case c == delim:
			return b.String(), i + 1, nil
		default:
			b.WriteByte(c)
		}
	}
	return "", 0, errors.New("unterminated expression")
}

func isWordOrSpace(c byte) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c == ' ' || c == '\t'
}
