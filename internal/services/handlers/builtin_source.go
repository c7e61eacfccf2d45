package handlers

import "context"

// SourceBuiltin is the source name of compiled-in handlers.
const SourceBuiltin = "builtin"

// BuiltinSource serves a static registration table.
type BuiltinSource struct {
	descriptors []*Descriptor
}

// NewBuiltinSource creates a source over descriptors.
func NewBuiltinSource(descriptors ...*Descriptor) *BuiltinSource {
	for _, d := range descriptors {
		if d != nil && d.Source == "" {
			d.Source = SourceBuiltin
		}
	}
	return &BuiltinSource{descriptors: descriptors}
}

// Name implements Source.
func (s *BuiltinSource) Name() string { return SourceBuiltin }

// Load implements Source.
func (s *BuiltinSource) Load(context.Context) ([]*Descriptor, error) {
	out := make([]*Descriptor, len(s.descriptors))
	copy(out, s.descriptors)
	return out, nil
}
