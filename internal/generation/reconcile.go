package generation

import (
	"github.com/nikhilbhutani/brandaudit/internal/models"
	"github.com/nikhilbhutani/brandaudit/internal/scoring"
)

const (
	sourceAnnotation    = "annotation"
	sourceDeterministic = "deterministic"
)

// Fallback is the deterministic reading of the same answer.
type Fallback struct {
	Scores   models.Scores
	Presence models.BrandPresence
	Mentions []models.BrandMention
}

// Reconciled is the merged view persisted for a run.
type Reconciled struct {
	Scores   models.Scores
	Sources  map[string]string
	Presence models.BrandPresence
	Mentions []models.MentionLabel
}

// Reconcile prefers the annotation's values and falls back to the
// deterministic ones wherever the annotation left a value out. Scores are
// clamped to [0,1].
func Reconcile(ann *Annotation, fb Fallback) Reconciled {
	if ann == nil {
		ann = &Annotation{}
	}

	sources := make(map[string]string, 4)
	pick := func(name string, annotated *float64, fallback float64) float64 {
		if annotated != nil {
			sources[name] = sourceAnnotation
			return *annotated
		}
		sources[name] = sourceDeterministic
		return fallback
	}

	scores := scoring.ClampScores(models.Scores{
		PresenceRate:       pick("presence_rate", ann.Scores.PresenceRate, fb.Scores.PresenceRate),
		CitationRate:       pick("citation_rate", ann.Scores.CitationRate, fb.Scores.CitationRate),
		RecommendationRate: pick("recommendation_rate", ann.Scores.RecommendationRate, fb.Scores.RecommendationRate),
		AuthorityDiversity: pick("authority_diversity", ann.Scores.AuthorityDiversity, fb.Scores.AuthorityDiversity),
	})

	return Reconciled{
		Scores:   scores,
		Sources:  sources,
		Presence: reconcilePresence(ann.PrimaryBrand, fb.Presence),
		Mentions: reconcileMentions(ann.Mentions, fb.Mentions),
	}
}

func reconcilePresence(pb *AnnotatedBrand, fb models.BrandPresence) models.BrandPresence {
	p := fb
	if pb == nil {
		return p
	}
	if pb.Detected != nil {
		p.BrandDetected = *pb.Detected
	}
	if pb.MentionType != "" {
		p.MentionType = models.ParseMatchType(pb.MentionType)
	}
	if pb.Confidence != nil {
		p.Confidence = scoring.Clamp(*pb.Confidence)
	}
	if pb.Reasoning != "" {
		p.Reasoning = pb.Reasoning
	}
	if !p.BrandDetected {
		p.MentionType = models.MatchNone
	}
	return p
}

func reconcileMentions(annotated []AnnotatedLabel, fb []models.BrandMention) []models.MentionLabel {
	var labels []models.MentionLabel
	for _, m := range annotated {
		if m.Brand == "" {
			continue
		}
		labels = append(labels, models.MentionLabel{Brand: m.Brand, Type: models.ParseMatchType(m.Type)})
	}
	if len(labels) > 0 {
		return labels
	}
	for _, m := range fb {
		labels = append(labels, models.MentionLabel{Brand: m.Brand, Type: m.MatchType})
	}
	return labels
}
