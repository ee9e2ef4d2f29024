package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/reef-research/backend/internal/storage/models"
	"github.com/reef-research/backend/pkg/logger"
)

const maxSourceChars = 24000

// ExtractClaims runs the two-pass extraction over one paper's source text:
// a raw extraction pass, then a verification pass that re-checks every item
// against the source and drops or rewrites anything unsupported.
func (c *Client) ExtractClaims(ctx context.Context, arxivID, sourceText string) (*models.PaperAnalysis, error) {
	if len(sourceText) > maxSourceChars {
		sourceText = sourceText[:maxSourceChars]
	}

	systemPrompt := `You are a scientific paper analyst. Extract structured claims from the given paper text.

Return JSON only:
{"claims": ["..."], "methods": ["..."], "limitations": ["..."], "conclusion": "..."}

Rules:
- claims: concrete, falsifiable statements the paper asserts as findings
- methods: techniques, datasets, and experimental setups actually used
- limitations: weaknesses the authors acknowledge or that are evident
- conclusion: one-paragraph summary of what the paper concludes
- Never invent content not present in the text.`

	userPrompt := fmt.Sprintf("Extract claims from this paper (%s):\n\n%s", arxivID, sourceText)

	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		Temperature:  0.2,
		MaxTokens:    1200,
	})
	if err != nil {
		return nil, fmt.Errorf("extraction pass failed: %w", err)
	}

	var analysis models.PaperAnalysis
	if err := decodeJSON(resp.Content, &analysis); err != nil {
		return nil, fmt.Errorf("extraction pass returned malformed output: %w", err)
	}
	analysis.ArxivID = arxivID

	verified, err := c.verifyClaims(ctx, &analysis, sourceText)
	if err != nil {
		// Verification is a refinement; keep the first-pass result if it fails.
		logger.Warn("Claim verification pass failed, keeping raw extraction",
			zap.String("arxiv_id", arxivID),
			zap.Error(err),
		)
		return &analysis, nil
	}

	logger.Info("Claims extracted",
		zap.String("arxiv_id", arxivID),
		zap.Int("claims", len(verified.Claims)),
		zap.Int("methods", len(verified.Methods)),
		zap.Int("limitations", len(verified.Limitations)),
	)

	return verified, nil
}

func (c *Client) verifyClaims(ctx context.Context, analysis *models.PaperAnalysis, sourceText string) (*models.PaperAnalysis, error) {
	systemPrompt := `You are a fact-checker for extracted scientific claims. You receive a paper's text and a candidate extraction.

For each claim, method, and limitation: keep it only if the source text supports it; rewrite it if it overstates; drop it if unsupported. Keep the conclusion faithful to the text.

Return the corrected extraction as JSON only:
{"claims": ["..."], "methods": ["..."], "limitations": ["..."], "conclusion": "..."}`

	candidate := fmt.Sprintf("claims: %v\nmethods: %v\nlimitations: %v\nconclusion: %s",
		analysis.Claims, analysis.Methods, analysis.Limitations, analysis.Conclusion)

	userPrompt := fmt.Sprintf("Source text:\n%s\n\nCandidate extraction:\n%s\n\nReturn the verified JSON.",
		sourceText, candidate)

	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		Temperature:  0.1,
		MaxTokens:    1200,
	})
	if err != nil {
		return nil, err
	}

	var verified models.PaperAnalysis
	if err := decodeJSON(resp.Content, &verified); err != nil {
		return nil, err
	}
	verified.ArxivID = analysis.ArxivID

	return &verified, nil
}

// SynthesizeAngles asks for exactly five candidate research angles. Scoring
// and ranking happen downstream in the angles package; the sub-scores here
// are the model's raw judgement.
func (c *Client) SynthesizeAngles(ctx context.Context, corpus, researchIdea string) ([]models.ResearchAngle, error) {
	systemPrompt := `You are a research strategist. Given claims, methods, limitations, and conclusions aggregated from recent papers, plus a user's research idea, propose exactly 5 novel research angles.

Return a JSON array of exactly 5 objects:
[{"title": "...", "description": "...", "novelty": 7.5, "practicality": 6.0, "impact": 8.0,
  "reasoning": "...", "brief_plan": ["step", "..."], "related_limitations": ["..."]}]

Scores are 0-10. Each angle must connect the user's idea to gaps or limitations in the analyzed papers. Do not include an overall score.`

	userPrompt := fmt.Sprintf("Research idea:\n%s\n\nAggregated paper analysis:\n%s\n\nReturn the JSON array of 5 angles.",
		researchIdea, corpus)

	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		Temperature:  0.7,
		MaxTokens:    3000,
	})
	if err != nil {
		return nil, fmt.Errorf("angle synthesis failed: %w", err)
	}

	var angles []models.ResearchAngle
	if err := decodeJSON(resp.Content, &angles); err != nil {
		return nil, fmt.Errorf("angle synthesis returned malformed output: %w", err)
	}

	logger.Info("Angles synthesized", zap.Int("count", len(angles)))

	return angles, nil
}

// GenerateAbstract writes a paper abstract for a chosen angle.
func (c *Client) GenerateAbstract(ctx context.Context, angle *models.ResearchAngle, corpus string) (*models.AbstractDoc, error) {
	systemPrompt := `You are an academic writer. Write a publication-quality abstract for the proposed research direction.

Return JSON only:
{"title": "...", "abstract": "...", "keywords": ["..."]}

The abstract is 150-250 words: motivation, gap, proposed approach, expected contribution. Title and abstract must be non-empty.`

	userPrompt := fmt.Sprintf("Research angle: %s\n%s\n\nSupporting context from analyzed papers:\n%s",
		angle.Title, angle.Description, corpus)

	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		Temperature:  0.5,
		MaxTokens:    800,
	})
	if err != nil {
		return nil, fmt.Errorf("abstract generation failed: %w", err)
	}

	var doc models.AbstractDoc
	if err := decodeJSON(resp.Content, &doc); err != nil {
		return nil, fmt.Errorf("abstract generation returned malformed output: %w", err)
	}

	if doc.Title == "" || doc.Abstract == "" {
		return nil, fmt.Errorf("abstract generation returned empty title or abstract")
	}

	return &doc, nil
}

// BuildPlan expands an angle and abstract into a full research plan.
func (c *Client) BuildPlan(ctx context.Context, angle *models.ResearchAngle, abstract *models.AbstractDoc) (*models.ResearchPlan, error) {
	systemPrompt := `You are a research project planner. Expand the given angle and abstract into a concrete research plan.

Return JSON only:
{"title": "...", "abstract": "...",
 "sections": [{"heading": "...", "objective": "...", "methods": ["..."], "deliverables": ["..."]}],
 "timeline": "...", "risks": ["..."]}

3-6 sections covering literature grounding, method development, experiments, and evaluation. Title and abstract must be non-empty.`

	userPrompt := fmt.Sprintf("Angle: %s\n%s\n\nAbstract:\n%s\n\n%s",
		angle.Title, angle.Description, abstract.Title, abstract.Abstract)

	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		Temperature:  0.5,
		MaxTokens:    2500,
	})
	if err != nil {
		return nil, fmt.Errorf("plan generation failed: %w", err)
	}

	var plan models.ResearchPlan
	if err := decodeJSON(resp.Content, &plan); err != nil {
		return nil, fmt.Errorf("plan generation returned malformed output: %w", err)
	}

	if plan.Title == "" || plan.Abstract == "" {
		return nil, fmt.Errorf("plan generation returned empty title or abstract")
	}

	return &plan, nil
}

// CritiquePlan reviews a plan the way a sceptical committee member would.
func (c *Client) CritiquePlan(ctx context.Context, plan *models.ResearchPlan) (*models.PlanCritique, error) {
	systemPrompt := `You are a sceptical grant review committee member. Critique the given research plan.

Rate feasibility, novelty_assessment, and rigor on a 1-3 scale (1 weak, 3 strong).

Return JSON only:
{"strengths": ["..."], "weaknesses": ["..."], "feasibility": 2,
 "novelty_assessment": 3, "rigor": 2, "suggestions": ["..."], "verdict": "..."}

The verdict is one of: "accept", "major_revision", "reject".`

	planText := fmt.Sprintf("Title: %s\n\nAbstract: %s\n\nTimeline: %s", plan.Title, plan.Abstract, plan.Timeline)
	for _, s := range plan.Sections {
		planText += fmt.Sprintf("\n\n%s: %s", s.Heading, s.Objective)
	}

	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   fmt.Sprintf("Critique this plan:\n\n%s", planText),
		Temperature:  0.3,
		MaxTokens:    1200,
	})
	if err != nil {
		return nil, fmt.Errorf("plan critique failed: %w", err)
	}

	var critique models.PlanCritique
	if err := decodeJSON(resp.Content, &critique); err != nil {
		return nil, fmt.Errorf("plan critique returned malformed output: %w", err)
	}

	return &critique, nil
}
