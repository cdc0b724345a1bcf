package roadmap

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/siddu28/Erflog/internal/ai"
	"github.com/siddu28/Erflog/internal/catalog"
)

//go:embed prompt.md
var promptTemplate string

const (
	defaultMaxSkills   = 3
	defaultMaxNodes    = 6
	maxDescriptionLen  = 1500
	narrowedMinNodes   = 3
	narrowedMinSkills  = 1
	noneText           = "none"
	previousProblemsAt = 5
)

// Config bounds the size of a generated plan.
type Config struct {
	Horizon   int `mapstructure:"horizon" validate:"gte=0,lte=14"`
	MaxSkills int `mapstructure:"max-skills" validate:"gte=0"`
	MaxNodes  int `mapstructure:"max-nodes" validate:"gte=0"`
}

func (c Config) withDefaults() Config {
	if c.Horizon <= 0 {
		c.Horizon = DefaultHorizon
	}
	if c.MaxSkills <= 0 {
		c.MaxSkills = defaultMaxSkills
	}
	if c.MaxNodes <= 0 {
		c.MaxNodes = defaultMaxNodes
	}
	return c
}

// Request is the input for one item.
type Request struct {
	UserSkills []string
	Item       catalog.Item
	Score      float64
}

// Result carries either a validated roadmap or Pending set with a nil roadmap.
// MissingSkills is always populated, even for degraded results.
type Result struct {
	Roadmap       *Roadmap
	MissingSkills []string
	Pending       bool
	Attempts      int
}

// Synthesizer turns a skill gap into a validated roadmap.
type Synthesizer struct {
	caller *ai.Caller
	cfg    Config
	logger *zap.Logger
}

func NewSynthesizer(caller *ai.Caller, cfg Config, logger *zap.Logger) *Synthesizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synthesizer{caller: caller, cfg: cfg.withDefaults(), logger: logger}
}

type scope struct {
	maxSkills int
	maxNodes  int
	skills    []string
	problems  []string
}

type draftGraph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

type draft struct {
	MissingSkills  any                   `json:"missing_skills"`
	Graph          draftGraph            `json:"graph"`
	Resources      map[string][]Resource `json:"resources"`
	EstimatedHours float64               `json:"estimated_hours"`
	FocusAreas     any                   `json:"focus_areas"`
}

// Synthesize builds a roadmap for req. A graph that fails validation is
// regenerated once with a narrowed scope; generator timeouts and unparseable
// output are not retried. On failure the result is Pending and err says why.
func (s *Synthesizer) Synthesize(ctx context.Context, req Request) (Result, error) {
	missing := MissingSkills(req.Item.Skills, req.UserSkills)
	res := Result{MissingSkills: missing, Pending: true}

	sc := scope{maxSkills: s.cfg.MaxSkills, maxNodes: s.cfg.MaxNodes, skills: missing}

	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		res.Attempts = attempt

		roadmap, err := s.attempt(ctx, req, sc)
		if err == nil {
			res.Roadmap = roadmap
			res.MissingSkills = roadmap.MissingSkills
			res.Pending = false
			return res, nil
		}
		lastErr = err

		var verr *ValidationError
		if !errors.As(err, &verr) {
			break
		}

		s.logger.Info("roadmap failed validation, narrowing scope",
			zap.String("item_id", req.Item.ID),
			zap.Int("attempt", attempt),
			zap.Strings("problems", verr.Problems),
		)
		sc = narrow(sc, verr.Problems)
	}

	s.logger.Warn("roadmap degraded to pending",
		zap.String("item_id", req.Item.ID),
		zap.Int("attempts", res.Attempts),
		zap.Error(lastErr),
	)
	return res, lastErr
}

func narrow(sc scope, problems []string) scope {
	next := scope{
		maxSkills: min(sc.maxSkills, max(narrowedMinSkills, sc.maxSkills-1)),
		maxNodes:  min(sc.maxNodes, max(narrowedMinNodes, sc.maxNodes/2)),
		problems:  problems,
	}
	if len(problems) > previousProblemsAt {
		next.problems = problems[:previousProblemsAt]
	}
	next.skills = sc.skills
	if len(next.skills) > next.maxSkills {
		next.skills = next.skills[:next.maxSkills]
	}
	return next
}

func (s *Synthesizer) attempt(ctx context.Context, req Request, sc scope) (*Roadmap, error) {
	prompt := s.buildPrompt(req, sc)

	var d draft
	raw, err := s.caller.JSON(ctx, "roadmap", prompt, &d)
	if err != nil {
		if errors.Is(err, ai.ErrGenerationMalformed) && raw != "" {
			if serr := CheckSchema(ai.ExtractJSON(raw)); serr != nil {
				var verr *ValidationError
				if errors.As(serr, &verr) {
					return nil, verr
				}
			}
		}
		return nil, err
	}
	if err := CheckSchema(ai.ExtractJSON(raw)); err != nil {
		return nil, err
	}

	g := Graph{Nodes: d.Graph.Nodes, Edges: d.Graph.Edges, Resources: d.Resources}
	Normalize(&g)

	if len(g.Nodes) > sc.maxNodes {
		return nil, &ValidationError{Problems: []string{
			fmt.Sprintf("graph has %d nodes, limit is %d", len(g.Nodes), sc.maxNodes),
		}}
	}
	if err := Validate(&g, s.cfg.Horizon); err != nil {
		return nil, err
	}

	skills := append([]string(nil), sc.skills...)
	skills = append(skills, ai.CoerceStrings(d.MissingSkills)...)
	skills = MissingSkills(skills, req.UserSkills)

	hours := int(d.EstimatedHours)
	if hours < 0 {
		hours = 0
	}

	return &Roadmap{
		MissingSkills:  skills,
		Graph:          g,
		EstimatedHours: hours,
		FocusAreas:     ai.CoerceStrings(d.FocusAreas),
	}, nil
}

func (s *Synthesizer) buildPrompt(req Request, sc scope) string {
	description := strings.TrimSpace(req.Item.Text())
	if r := []rune(description); len(r) > maxDescriptionLen {
		description = string(r[:maxDescriptionLen])
	}

	previous := ""
	if len(sc.problems) > 0 {
		previous = "- A previous attempt was rejected for: " + strings.Join(sc.problems, "; ") + ". Produce a smaller, simpler graph.\n"
	}

	return ai.Render(promptTemplate, map[string]string{
		"HORIZON":           strconv.Itoa(s.cfg.Horizon),
		"TITLE":             orNone(req.Item.Title),
		"ORG":               orNone(req.Item.Org),
		"SCORE":             strconv.FormatFloat(req.Score*100, 'f', 0, 64) + "%",
		"DESCRIPTION":       orNone(description),
		"USER_SKILLS":       orNone(strings.Join(req.UserSkills, ", ")),
		"MISSING_SKILLS":    orNone(strings.Join(sc.skills, ", ")),
		"MAX_SKILLS":        strconv.Itoa(sc.maxSkills),
		"MAX_NODES":         strconv.Itoa(sc.maxNodes),
		"PREVIOUS_PROBLEMS": previous,
	})
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return noneText
	}
	return s
}
