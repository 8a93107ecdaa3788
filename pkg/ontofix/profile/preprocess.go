package profile

import (
	"log/slog"

	"github.com/cognicore/ontofix/pkg/ontofix/axiom"
)

// Verdict is the outcome of preprocessing a set of suspected axioms.
type Verdict struct {
	// White holds axioms that some voter entails and none contradicts.
	White axiom.Set
	// Errors holds axioms that some voter contradicts and none entails.
	Errors axiom.Set
	// Skipped holds axioms whose votes could not be collected.
	Skipped axiom.Set
}

// StatusSource yields per-voter support votes for an axiom.
type StatusSource interface {
	Status(a axiom.Axiom) ([]Status, error)
}

// Preprocess sorts axs into initial white and black lists from the votes of
// src. Axioms with mixed or no decisive votes stay undecided. A failing
// vote only excludes that axiom.
func Preprocess(src StatusSource, axs []axiom.Axiom, logger *slog.Logger) Verdict {
	if logger == nil {
		logger = slog.Default()
	}
	v := Verdict{White: axiom.NewSet(), Errors: axiom.NewSet(), Skipped: axiom.NewSet()}
	for _, a := range axs {
		votes, err := src.Status(a)
		if err != nil {
			logger.Warn("support check failed", "axiom", a, "error", err)
			v.Skipped.Add(a)
			continue
		}
		if len(votes) == 0 {
			continue
		}

		var pos, neg int
		for _, st := range votes {
			switch st {
			case StatusEntailed:
				pos++
			case StatusNegationEntailed:
				neg++
			}
		}
		switch {
		case pos > 0 && neg == 0:
			v.White.Add(a)
		case neg > 0 && pos == 0:
			v.Errors.Add(a)
		}
	}

	logger.Info("preprocess finished", "errors", v.Errors.Len(), "white", v.White.Len(), "skipped", v.Skipped.Len())
	return v
}
