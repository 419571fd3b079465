package extract

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/eduseek/curator/internal/model"
)

// ValidateGrade compares a target grade against an identified one by
// resolving both to canonical profile identifiers. Raw local text is never
// string-compared. A side that cannot be resolved degrades the verdict to
// indeterminate instead of failing the pipeline.
func (e *Extractor) ValidateGrade(target, identified string) model.Verdict {
	return e.validate(target, identified, "grade", e.profile.ResolveGrade)
}

// ValidateSubject is the subject analogue of ValidateGrade.
func (e *Extractor) ValidateSubject(target, identified string) model.Verdict {
	return e.validate(target, identified, "subject", e.profile.ResolveSubject)
}

func (e *Extractor) validate(target, identified, kind string, resolve func(string) (string, error)) model.Verdict {
	if identified == "" {
		return model.Verdict{Kind: model.VerdictIndeterminate, Reason: "no " + kind + " signal"}
	}

	targetID, err := resolve(target)
	if err != nil {
		zap.L().Debug("extract: target unresolved",
			zap.String("region", e.profile.Code),
			zap.String("kind", kind),
			zap.String("text", target),
			zap.Error(err),
		)
		return model.Verdict{Kind: model.VerdictIndeterminate, Reason: fmt.Sprintf("target %s %q unresolved", kind, target)}
	}

	identifiedID, err := resolve(identified)
	if err != nil {
		return model.Verdict{Kind: model.VerdictIndeterminate, Reason: fmt.Sprintf("identified %s %q unresolved", kind, identified)}
	}

	if targetID == identifiedID {
		return model.Verdict{Kind: model.VerdictMatch, Reason: fmt.Sprintf("%s resolves to %s", kind, targetID)}
	}
	return model.Verdict{
		Kind:   model.VerdictMismatch,
		Reason: fmt.Sprintf("%s %s does not match target %s", kind, identifiedID, targetID),
	}
}
