package redact

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/aitsambajwa-iss/Checkoutly/patterns"
)

// Source selects which text a detector scans.
type Source string

const (
	// SourceNormalized is the lower-cased text with spoken numbers converted to digits.
	SourceNormalized Source = "normalized"
	// SourceWorking is the message as rewritten by earlier detectors.
	SourceWorking Source = "working"
)

// Scope is the part of the text a match replaces.
type Scope string

const (
	ScopeSpan    Scope = "span"
	ScopeGroup   Scope = "group"
	ScopeMessage Scope = "message"
)

// CascadeFile is the YAML layout of a redaction cascade.
type CascadeFile struct {
	Stoplist  []string         `yaml:"stoplist"`
	Detectors []DetectorConfig `yaml:"detectors"`
}

// DetectorConfig is one category in the cascade.
type DetectorConfig struct {
	Kind     Kind            `yaml:"kind"`
	Source   Source          `yaml:"source"`
	Terminal bool            `yaml:"terminal"`
	Patterns []PatternConfig `yaml:"patterns"`
}

// PatternConfig is a single regex within a detector.
type PatternConfig struct {
	Name    string `yaml:"name"`
	Regex   string `yaml:"regex"`
	Group   int    `yaml:"group"`
	Replace Scope  `yaml:"replace"`
	Check   string `yaml:"check"`
	Min     int    `yaml:"min"`
}

// Detector is a compiled cascade entry.
type Detector struct {
	Kind     Kind
	Source   Source
	Terminal bool
	Patterns []*Pattern
}

// Pattern is a compiled regex with its replacement scope and validation.
type Pattern struct {
	Name    string
	Re      *regexp.Regexp
	Group   int
	Replace Scope
	Check   string
	Min     int
}

// Cascade is the ordered detector list plus the name stoplist.
type Cascade struct {
	Detectors []*Detector
	Stoplist  map[string]struct{}
}

// ParseCascade parses and compiles cascade YAML.
func ParseCascade(data []byte) (*Cascade, error) {
	var f CascadeFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing cascade YAML: %w", err)
	}
	return f.Compile()
}

// DefaultCascade returns the embedded cascade.
func DefaultCascade() (*Cascade, error) {
	return ParseCascade(patterns.RedactionYAML())
}

// Compile validates every detector and compiles its patterns.
func (f *CascadeFile) Compile() (*Cascade, error) {
	c := &Cascade{Stoplist: make(map[string]struct{}, len(f.Stoplist))}
	for _, w := range f.Stoplist {
		c.Stoplist[strings.ToLower(w)] = struct{}{}
	}

	for i, dc := range f.Detectors {
		if !dc.Kind.valid() {
			return nil, fmt.Errorf("detector %d: unknown kind %q", i, dc.Kind)
		}
		d := &Detector{Kind: dc.Kind, Source: dc.Source, Terminal: dc.Terminal}
		if d.Source == "" {
			d.Source = SourceWorking
		}
		if d.Source != SourceWorking && d.Source != SourceNormalized {
			return nil, fmt.Errorf("detector %s: unknown source %q", dc.Kind, dc.Source)
		}
		for _, pc := range dc.Patterns {
			p, err := compilePattern(dc.Kind, d.Source, pc)
			if err != nil {
				return nil, err
			}
			d.Patterns = append(d.Patterns, p)
		}
		c.Detectors = append(c.Detectors, d)
	}
	return c, nil
}

func compilePattern(kind Kind, src Source, pc PatternConfig) (*Pattern, error) {
	re, err := regexp.Compile(pc.Regex)
	if err != nil {
		return nil, fmt.Errorf("detector %s pattern %s: %w", kind, pc.Name, err)
	}
	if pc.Group < 0 || pc.Group > re.NumSubexp() {
		return nil, fmt.Errorf("detector %s pattern %s: group %d out of range", kind, pc.Name, pc.Group)
	}
	scope := pc.Replace
	if scope == "" {
		scope = ScopeSpan
	}
	switch scope {
	case ScopeSpan, ScopeGroup, ScopeMessage:
	default:
		return nil, fmt.Errorf("detector %s pattern %s: unknown replace scope %q", kind, pc.Name, pc.Replace)
	}
	// Offsets in the normalized text do not line up with the message.
	if src == SourceNormalized && scope != ScopeMessage {
		return nil, fmt.Errorf("detector %s pattern %s: normalized source requires replace: message", kind, pc.Name)
	}
	if _, ok := checks[pc.Check]; !ok {
		return nil, fmt.Errorf("detector %s pattern %s: unknown check %q", kind, pc.Name, pc.Check)
	}
	return &Pattern{
		Name:    pc.Name,
		Re:      re,
		Group:   pc.Group,
		Replace: scope,
		Check:   pc.Check,
		Min:     pc.Min,
	}, nil
}

// checkEnv is what a check may consult besides the match itself.
type checkEnv struct {
	stoplist map[string]struct{}
	now      time.Time
}

// A check receives the trimmed capture and every submatch, and returns the
// value to store in the vault.
type checkFunc func(env checkEnv, p *Pattern, captured string, groups []string) (string, bool)

var (
	givenNameRe = regexp.MustCompile(`^[A-Z][a-z]+$`)
	fullNameRe  = regexp.MustCompile(`^[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*$`)
	cvvRe       = regexp.MustCompile(`^\d{3,4}$`)
	separatorRe = regexp.MustCompile(`[\s-]`)
)

var checks = map[string]checkFunc{
	"": func(_ checkEnv, _ *Pattern, captured string, _ []string) (string, bool) {
		return captured, captured != ""
	},
	"card_number": func(_ checkEnv, _ *Pattern, captured string, _ []string) (string, bool) {
		digits := separatorRe.ReplaceAllString(captured, "")
		return digits, len(digits) >= 15 && len(digits) <= 16
	},
	"min_digits": func(_ checkEnv, p *Pattern, captured string, _ []string) (string, bool) {
		n := 0
		for _, r := range captured {
			if unicode.IsDigit(r) {
				n++
			}
		}
		return captured, n >= p.Min
	},
	"min_length": func(_ checkEnv, p *Pattern, captured string, _ []string) (string, bool) {
		return captured, len(captured) >= p.Min
	},
	"given_name": func(env checkEnv, _ *Pattern, captured string, _ []string) (string, bool) {
		if len(captured) < 2 || env.stopped(captured) {
			return "", false
		}
		return captured, givenNameRe.MatchString(captured)
	},
	"full_name": func(env checkEnv, _ *Pattern, captured string, _ []string) (string, bool) {
		if env.stopped(captured) {
			return "", false
		}
		return captured, fullNameRe.MatchString(captured)
	},
	"email": func(_ checkEnv, _ *Pattern, captured string, _ []string) (string, bool) {
		return strings.ToLower(captured), strings.Contains(captured, "@")
	},
	"spoken_email": func(_ checkEnv, _ *Pattern, _ string, groups []string) (string, bool) {
		if len(groups) < 4 {
			return "", false
		}
		return strings.ToLower(groups[1] + "@" + groups[2] + "." + groups[3]), true
	},
	"cvv": func(_ checkEnv, _ *Pattern, captured string, _ []string) (string, bool) {
		return captured, cvvRe.MatchString(captured)
	},
	"expiry": func(env checkEnv, _ *Pattern, captured string, _ []string) (string, bool) {
		return captured, validExpiry(captured, env.now)
	},
}

func (env checkEnv) stopped(word string) bool {
	_, ok := env.stoplist[strings.ToLower(word)]
	return ok
}

// validExpiry accepts MM/YY, MM-YY, MM/YYYY with a month in 1..12 and a year
// no earlier than the current one.
func validExpiry(s string, now time.Time) bool {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '/' || r == '-' })
	if len(parts) != 2 {
		return false
	}
	month, err := strconv.Atoi(parts[0])
	if err != nil || month < 1 || month > 12 {
		return false
	}
	year, err := strconv.Atoi(parts[1])
	if err != nil {
		return false
	}
	switch len(parts[1]) {
	case 2:
		return year >= now.Year()%100
	case 4:
		return year >= now.Year()
	default:
		return false
	}
}
