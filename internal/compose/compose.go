// Package compose drafts application text for retained catalog items.
package compose

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/siddu28/Erflog/internal/ai"
	"github.com/siddu28/Erflog/internal/catalog"
	"github.com/siddu28/Erflog/internal/profile"
)

//go:embed prompt.md
var promptTemplate string

const (
	maxSkills         = 10
	maxExperienceLen  = 500
	maxDescriptionLen = 1000
)

// Bundle is the application text drafted for one item.
type Bundle struct {
	WhyThisCompany          string   `json:"why_this_company" validate:"required"`
	WhyThisRole             string   `json:"why_this_role" validate:"required"`
	ShortIntro              string   `json:"short_intro" validate:"required"`
	CoverLetterOpening      string   `json:"cover_letter_opening" validate:"required"`
	CoverLetterBody         string   `json:"cover_letter_body" validate:"required"`
	CoverLetterClosing      string   `json:"cover_letter_closing" validate:"required"`
	KeyAchievements         []string `json:"key_achievements" validate:"required,min=1,dive,required"`
	QuestionsForInterviewer []string `json:"questions_for_interviewer" validate:"required,min=1,dive,required"`
}

func (b *Bundle) trim() {
	for _, s := range []*string{&b.WhyThisCompany, &b.WhyThisRole, &b.ShortIntro, &b.CoverLetterOpening, &b.CoverLetterBody, &b.CoverLetterClosing} {
		*s = strings.TrimSpace(*s)
	}
	b.KeyAchievements = ai.CoerceStrings(b.KeyAchievements)
	b.QuestionsForInterviewer = ai.CoerceStrings(b.QuestionsForInterviewer)
}

// Composer drafts application bundles.
type Composer struct {
	caller   *ai.Caller
	validate *validator.Validate
	logger   *zap.Logger
}

func NewComposer(caller *ai.Caller, logger *zap.Logger) *Composer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Composer{caller: caller, validate: validator.New(), logger: logger}
}

// Compose returns a complete bundle or an error; it never returns a partial bundle.
func (c *Composer) Compose(ctx context.Context, p *profile.UserProfile, item catalog.Item) (*Bundle, error) {
	if p == nil {
		return nil, fmt.Errorf("profile is required")
	}

	var bundle Bundle
	if _, err := c.caller.JSON(ctx, "application", buildPrompt(p, item), &bundle); err != nil {
		return nil, err
	}

	bundle.trim()
	if err := c.validate.Struct(&bundle); err != nil {
		return nil, fmt.Errorf("%w: incomplete bundle: %v", ai.ErrGenerationMalformed, err)
	}

	c.logger.Debug("application text drafted", zap.String("item_id", item.ID))
	return &bundle, nil
}

func buildPrompt(p *profile.UserProfile, item catalog.Item) string {
	skills := p.Skills
	if len(skills) > maxSkills {
		skills = skills[:maxSkills]
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = "Candidate"
	}

	return ai.Render(promptTemplate, map[string]string{
		"NAME":        name,
		"SKILLS":      orDefault(strings.Join(skills, ", "), "not specified"),
		"EXPERIENCE":  orDefault(clip(p.ExperienceSummary, maxExperienceLen), "not specified"),
		"TITLE":       orDefault(item.Title, "Position"),
		"ORG":         orDefault(item.Org, "the organisation"),
		"NAMESPACE":   item.Namespace.String(),
		"DESCRIPTION": orDefault(clip(item.Description, maxDescriptionLen), "not provided"),
	})
}

func clip(s string, limit int) string {
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > limit {
		return string(r[:limit])
	}
	return s
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
