// Package manifest loads the YAML multi-document manifest format from
// §6 into generic Resource envelopes, ready for ResourceRegistry.Put to
// resolve into their registered typed form.
package manifest

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"
	"k8s.io/apimachinery/pkg/util/yaml"
	sigsyaml "sigs.k8s.io/yaml"

	"github.com/NiklasRosenstein/equilibrium/internal/resource"
)

// validate runs the struct-tag checks below. A package-level instance is
// safe for concurrent use and caches its struct-type reflection, per the
// validator package's own documentation.
var validate = validator.New()

// document mirrors the wire shape from §6: apiVersion/kind/metadata plus
// an open spec tree. Decoded via sigs.k8s.io/yaml, which round-trips
// through encoding/json so spec ends up as map[string]any rather than
// map[interface{}]interface{}.
type document struct {
	APIVersion string           `json:"apiVersion" validate:"required"`
	Kind       string           `json:"kind" validate:"required"`
	Metadata   documentMetadata `json:"metadata" validate:"required"`
	Spec       map[string]any   `json:"spec"`
}

// documentMetadata carries its own DNS-label shape check ahead of the
// URI package's regex-based grammar: required/alphanum-hyphen gives a
// cheap, declarative fast-fail before a document even reaches
// resource.ValidateIdentifier, the same layering jordigilh-kubernaut's
// go-playground/validator dependency exists to provide.
type documentMetadata struct {
	Namespace   string            `json:"namespace,omitempty" validate:"omitempty,dns_label_like"`
	Name        string            `json:"name" validate:"required,dns_label_like"`
	Labels      map[string]string `json:"labels,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

func init() {
	_ = validate.RegisterValidation("dns_label_like", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if s == "" {
			return false
		}
		for i, r := range s {
			switch {
			case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			case r == '-' && i != 0 && i != len(s)-1:
			default:
				return false
			}
		}
		return true
	})
}

// Load splits r into YAML documents and decodes each into a generic
// Resource. Empty documents (trailing "---" separators, blank files) are
// skipped.
func Load(r io.Reader) ([]resource.Resource, error) {
	splitter := yaml.NewYAMLReader(bufio.NewReader(r))

	var out []resource.Resource
	for {
		raw, err := splitter.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read manifest document: %w", err)
		}
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}

		var doc document
		if err := sigsyaml.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("decode manifest document: %w", err)
		}
		if err := validate.Struct(doc); err != nil {
			return nil, fmt.Errorf("validate manifest document: %w", err)
		}

		out = append(out, resource.Resource{
			APIVersion: doc.APIVersion,
			Kind:       doc.Kind,
			Metadata: resource.Metadata{
				Namespace:   doc.Metadata.Namespace,
				Name:        doc.Metadata.Name,
				Labels:      doc.Metadata.Labels,
				Annotations: doc.Metadata.Annotations,
			},
			Spec: resource.NewGenericSpec(doc.Spec),
		})
	}
	return out, nil
}
