// Package query owns the browse parameters of a session and turns every change into an
// immutable Signature that the fetch pipeline keys its state on.
package query

import (
	"github.com/jxwalker/modbrowse/internal/modplatform"
)

// Signature is an immutable fingerprint of a complete parameter set. Two signatures are
// equal iff every parameter is equal after canonicalization.
type Signature struct {
	params modplatform.Params
	key    string
}

func NewSignature(p modplatform.Params) Signature {
	c := p.Canonical()
	return Signature{params: c, key: c.Key()}
}

func (s Signature) Equal(o Signature) bool { return s.key == o.key }

// IsZero reports whether s is the zero Signature, which no store ever produces.
func (s Signature) IsZero() bool { return s.key == "" }

func (s Signature) Key() string { return s.key }

func (s Signature) String() string { return s.key }

// Params returns a copy of the canonical parameters.
func (s Signature) Params() modplatform.Params { return s.params.Clone() }

func (s Signature) ResultType() modplatform.ResultType { return s.params.ResultType }

func (s Signature) Platform() modplatform.Platform { return s.params.Platform }

func (s Signature) SearchText() string { return s.params.SearchText }

// ProjectID is set for version listings and empty for catalog searches.
func (s Signature) ProjectID() string { return s.params.ProjectID }
