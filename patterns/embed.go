// Package patterns provides the embedded default redaction cascade.
// See redaction.yaml for the detector order and per-pattern fields.
package patterns

import _ "embed"

//go:embed redaction.yaml
var redactionYAML []byte

// RedactionYAML returns the embedded detector cascade and stoplist.
func RedactionYAML() []byte { return redactionYAML }
