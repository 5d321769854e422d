package resource

import (
	"regexp"
	"strings"
)

var (
	segmentPattern    = regexp.MustCompile(`^[.a-z0-9]([-.a-z0-9]*[.a-z0-9])?$`)
	identifierPattern = regexp.MustCompile(`^[a-zA-Z0-9]([-a-zA-Z0-9]*[a-zA-Z0-9])?$`)
)

// ValidateAPIVersion checks apiVersion against the DNS-style grammar:
// segment('/'segment)*.
func ValidateAPIVersion(apiVersion string) error {
	if apiVersion == "" {
		return &InvalidURIError{Component: "apiVersion", Value: apiVersion}
	}
	for _, segment := range strings.Split(apiVersion, "/") {
		if !segmentPattern.MatchString(segment) {
			return &InvalidURIError{Component: "apiVersion", Value: apiVersion}
		}
	}
	return nil
}

// ValidateIdentifier checks kind/name/namespace against the identifier
// grammar.
func ValidateIdentifier(component, value string) error {
	if !identifierPattern.MatchString(value) {
		return &InvalidURIError{Component: component, Value: value}
	}
	return nil
}

// Type is the pair (apiVersion, kind) — the unit of registration and
// service indexing. It is comparable and usable directly as a map key,
// mirroring the teacher's BranchKey pattern in internal/git/worker_manager.go.
type Type struct {
	APIVersion string
	Kind       string
}

func (t Type) String() string {
	return t.APIVersion + "/" + t.Kind
}

// Validate checks that apiVersion and kind conform to the URI grammar.
func (t Type) Validate() error {
	if err := ValidateAPIVersion(t.APIVersion); err != nil {
		return err
	}
	return ValidateIdentifier("kind", t.Kind)
}

// URI is a resource's primary key: the four-tuple (apiVersion, kind,
// namespace-or-none, name). Namespace is empty for cluster-scoped
// resources; use Namespaced() to distinguish "no namespace" from "empty
// string namespace", which the grammar forbids in any case since an empty
// namespace never validates as an identifier.
type URI struct {
	APIVersion string
	Kind       string
	Namespace  string // empty means cluster-scoped
	Name       string
}

// NewClusterURI constructs a cluster-scoped URI, validating every
// component.
func NewClusterURI(apiVersion, kind, name string) (URI, error) {
	return newURI(apiVersion, kind, "", name, false)
}

// NewNamespacedURI constructs a namespaced URI, validating every
// component including the namespace.
func NewNamespacedURI(apiVersion, kind, namespace, name string) (URI, error) {
	return newURI(apiVersion, kind, namespace, name, true)
}

func newURI(apiVersion, kind, namespace, name string, namespaced bool) (URI, error) {
	if err := ValidateAPIVersion(apiVersion); err != nil {
		return URI{}, err
	}
	if err := ValidateIdentifier("kind", kind); err != nil {
		return URI{}, err
	}
	if err := ValidateIdentifier("name", name); err != nil {
		return URI{}, err
	}
	if namespaced {
		if err := ValidateIdentifier("namespace", namespace); err != nil {
			return URI{}, err
		}
	} else if namespace != "" {
		return URI{}, &InvalidURIError{Component: "namespace", Value: namespace}
	}
	return URI{APIVersion: apiVersion, Kind: kind, Namespace: namespace, Name: name}, nil
}

// Type returns the (apiVersion, kind) pair this URI belongs to.
func (u URI) Type() Type {
	return Type{APIVersion: u.APIVersion, Kind: u.Kind}
}

// Namespaced reports whether this URI refers to a namespaced resource.
func (u URI) Namespaced() bool {
	return u.Namespace != ""
}

// String renders the URI using '/' as separator: apiVersion/kind/namespace/name
// for namespaced resources, apiVersion/kind/name for cluster-scoped ones —
// the namespace slot is omitted entirely, never left blank, following the
// teacher's ResourceIdentifier.String()/ToGitPath() split between the two
// shapes.
func (u URI) String() string {
	if u.Namespaced() {
		return strings.Join([]string{u.APIVersion, u.Kind, u.Namespace, u.Name}, "/")
	}
	return strings.Join([]string{u.APIVersion, u.Kind, u.Name}, "/")
}

// ParseURI parses the string form of a URI. Because apiVersion itself may
// contain '/'-separated segments, the caller must say whether the target
// Type is namespaced (the registry always knows this before it looks a
// resource up).
func ParseURI(s string, namespaced bool) (URI, error) {
	parts := strings.Split(s, "/")
	want := 3
	if namespaced {
		want = 4
	}
	if len(parts) < want {
		return URI{}, &InvalidURIError{Component: "uri", Value: s}
	}
	tailStart := len(parts) - (want - 1)
	apiVersion := strings.Join(parts[:tailStart], "/")
	tail := parts[tailStart:]

	if namespaced {
		return NewNamespacedURI(apiVersion, tail[0], tail[1], tail[2])
	}
	return NewClusterURI(apiVersion, tail[0], tail[1])
}
