package compose

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// templateFile is the YAML shape of an operator-provided template override.
type templateFile struct {
	Subject string `yaml:"subject"`
	Body    string `yaml:"body"`
}

// NewFromFile creates a composer whose subject and body templates are read
// from a YAML file. An empty subject or body falls back to the built-in
// template, so the file may override just one of the two.
func NewFromFile(from, path string) (*Composer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template file: %w", err)
	}

	var tf templateFile
	if err := yaml.Unmarshal(raw, &tf); err != nil {
		return nil, fmt.Errorf("parse template file %s: %w", path, err)
	}

	subject := tf.Subject
	if subject == "" {
		subject = defaultSubject
	}
	body := tf.Body
	if body == "" {
		body = defaultBody
	}
	return newComposer(from, subject, body)
}
