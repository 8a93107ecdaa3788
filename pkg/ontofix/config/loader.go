package config

import (
	"fmt"

	"github.com/cognicore/ontofix/pkg/ontofix/axiom"
	"github.com/cognicore/ontofix/pkg/ontofix/internalerr"
	"github.com/cognicore/ontofix/pkg/ontofix/ontology"
	"github.com/cognicore/ontofix/pkg/ontofix/profile"
)

// Loader loads the axiom files a debugging pass needs
type Loader struct {
	OntologyPath  string
	ProfilePaths  []string
	AlignmentPath string
}

// Components holds the loaded inputs
type Components struct {
	Ontology  *ontology.Ontology
	Profile   *profile.Profile
	Alignment axiom.Set
}

// NewLoader returns a loader for the paths in cfg.
func NewLoader(cfg Config) *Loader {
	return &Loader{
		OntologyPath:  cfg.Paths.Ontology,
		ProfilePaths:  cfg.Paths.Profile,
		AlignmentPath: cfg.Paths.Alignment,
	}
}

// Load reads all files and returns initialized components
func (l *Loader) Load() (*Components, error) {
	if l.OntologyPath == "" {
		return nil, fmt.Errorf("%w: no ontology path", internalerr.ErrInvalidConfig)
	}
	ont, err := ontology.LoadFile(l.OntologyPath)
	if err != nil {
		return nil, fmt.Errorf("load ontology: %w", err)
	}
	comp := &Components{Ontology: ont, Alignment: axiom.NewSet()}

	if len(l.ProfilePaths) > 0 {
		comp.Profile, err = profile.LoadFiles(l.ProfilePaths...)
		if err != nil {
			return nil, fmt.Errorf("load profile: %w", err)
		}
	}

	if l.AlignmentPath != "" {
		align, err := ontology.LoadFile(l.AlignmentPath)
		if err != nil {
			return nil, fmt.Errorf("load alignment: %w", err)
		}
		comp.Alignment = align.Axioms()
	}
	return comp, nil
}
