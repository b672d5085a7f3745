// Package answer produces reply text for customer questions from the
// operator's manuals and a language model.
package answer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/chosahoo/cafe24-cs-bot/internal/apperr"
	"github.com/chosahoo/cafe24-cs-bot/internal/llm"
	"github.com/chosahoo/cafe24-cs-bot/internal/manual"
	"github.com/chosahoo/cafe24-cs-bot/internal/settings"
)

// Source says how an answer was produced.
type Source string

const (
	// SourceTemplate is a keyword template returned verbatim.
	SourceTemplate Source = "template"
	// SourceKeyword is a keyword template rephrased by the model.
	SourceKeyword Source = "keyword"
	// SourceManual is a model answer grounded on the manual context.
	SourceManual Source = "manual"
)

// Result is a generated answer.
type Result struct {
	Text         string  `json:"text"`
	Source       Source  `json:"source"`
	Keyword      string  `json:"keyword,omitempty"`
	SizeLabel    string  `json:"size_label,omitempty"`
	Model        string  `json:"model,omitempty"`
	ManualsUsed  []int64 `json:"manuals_used,omitempty"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
}

// Validation is a quality score for an answer.
type Validation struct {
	Score    int            `json:"score"`
	Criteria map[string]int `json:"criteria"`
	Feedback string         `json:"feedback"`
}

// ManualSource lists the manuals to ground answers on.
type ManualSource interface {
	List(ctx context.Context) ([]manual.Entry, error)
}

// Overrides supplies operator-set model parameters.
type Overrides interface {
	GenerationOverrides(ctx context.Context) (settings.Generation, error)
}

// Options are the static generation defaults.
type Options struct {
	Model                string
	Temperature          float64
	MaxTokens            int
	ShopName             string
	ContextBudget        int
	MaxManuals           int
	DirectKeywordAnswers bool
}

// Generator builds prompts and calls the model.
type Generator struct {
	provider  llm.Provider
	manuals   ManualSource
	overrides Overrides
	opts      Options
	logger    *zap.Logger
}

// NewGenerator creates a Generator. overrides may be nil.
func NewGenerator(provider llm.Provider, manuals ManualSource, overrides Overrides, opts Options, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		provider:  provider,
		manuals:   manuals,
		overrides: overrides,
		opts:      opts,
		logger:    logger.Named("answer"),
	}
}

// Generate answers question. A keyword hit in the manuals short-circuits
// the full-manual prompt; extra is appended to the full-manual prompt only.
func (g *Generator) Generate(ctx context.Context, question, extra string) (*Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("empty question: %w", apperr.ErrValidation)
	}

	entries, err := g.manuals.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading manuals: %w", err)
	}
	idx := manual.BuildIndex(entries)

	if ka, ok := idx.Answer(question); ok {
		if g.opts.DirectKeywordAnswers {
			g.logger.Debug("keyword template answer", zap.String("keyword", ka.Keyword))
			return &Result{Text: ka.Answer, Source: SourceTemplate, Keyword: ka.Keyword, SizeLabel: ka.SizeLabel}, nil
		}
		res, err := g.complete(ctx, []llm.Message{
			{Role: llm.RoleSystem, Content: keywordSystemPrompt(g.opts.ShopName)},
			{Role: llm.RoleUser, Content: keywordUserPrompt(question, ka.Answer, ka.SizeLabel)},
		}, false)
		if err != nil {
			return nil, err
		}
		res.Source, res.Keyword, res.SizeLabel = SourceKeyword, ka.Keyword, ka.SizeLabel
		return res, nil
	}

	mc := manual.BuildContext(entries, g.opts.ContextBudget, g.opts.MaxManuals)
	if len(mc.Omitted) > 0 {
		g.logger.Info("manual context over budget",
			zap.Int("included", len(mc.Included)),
			zap.Int("omitted", len(mc.Omitted)))
	}
	res, err := g.complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: manualSystemPrompt(g.opts.ShopName, mc.Text)},
		{Role: llm.RoleUser, Content: manualUserPrompt(question, strings.TrimSpace(extra))},
	}, false)
	if err != nil {
		return nil, err
	}
	res.Source = SourceManual
	res.ManualsUsed = mc.Included
	return res, nil
}

// Validate scores answer against question on four 1-5 criteria, scaled to 0-100.
func (g *Generator) Validate(ctx context.Context, question, answer string) (*Validation, error) {
	if strings.TrimSpace(question) == "" || strings.TrimSpace(answer) == "" {
		return nil, fmt.Errorf("question and answer are required: %w", apperr.ErrValidation)
	}
	res, err := g.completeWith(ctx, []llm.Message{
		{Role: llm.RoleUser, Content: validationPrompt(question, answer)},
	}, true, 0.3, 300)
	if err != nil {
		return nil, err
	}
	return parseValidation(res.Text)
}

func parseValidation(raw string) (*Validation, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var payload struct {
		Relevance    int    `json:"relevance"`
		Courtesy     int    `json:"courtesy"`
		Accuracy     int    `json:"accuracy"`
		Completeness int    `json:"completeness"`
		Feedback     string `json:"feedback"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &payload); err != nil {
		return nil, fmt.Errorf("parsing validation result: %v: %w", err, apperr.ErrUpstreamUnavailable)
	}
	v := &Validation{
		Criteria: map[string]int{
			"relevance":    clamp(payload.Relevance, 1, 5),
			"courtesy":     clamp(payload.Courtesy, 1, 5),
			"accuracy":     clamp(payload.Accuracy, 1, 5),
			"completeness": clamp(payload.Completeness, 1, 5),
		},
		Feedback: payload.Feedback,
	}
	total := 0
	for _, n := range v.Criteria {
		total += n
	}
	v.Score = clamp(total*5, 0, 100)
	return v, nil
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

// complete runs an answer completion with the effective parameters.
func (g *Generator) complete(ctx context.Context, msgs []llm.Message, jsonMode bool) (*Result, error) {
	return g.completeWith(ctx, msgs, jsonMode, -1, 0)
}

// completeWith uses temperature and maxTokens when they are set (>= 0 and > 0).
func (g *Generator) completeWith(ctx context.Context, msgs []llm.Message, jsonMode bool, temperature float64, maxTokens int) (*Result, error) {
	model, temp, max := g.opts.Model, g.opts.Temperature, g.opts.MaxTokens
	if g.overrides != nil {
		o, err := g.overrides.GenerationOverrides(ctx)
		if err != nil {
			g.logger.Warn("reading generation settings", zap.Error(err))
		} else {
			if o.Model != "" {
				model = o.Model
			}
			if o.Temperature > 0 {
				temp = o.Temperature
			}
			if o.MaxTokens > 0 {
				max = o.MaxTokens
			}
		}
	}
	if temperature >= 0 {
		temp = temperature
	}
	if maxTokens > 0 {
		max = maxTokens
	}

	resp, err := g.provider.Complete(ctx, llm.CompletionRequest{
		Model:       model,
		Messages:    msgs,
		MaxTokens:   max,
		Temperature: temp,
		JSONMode:    jsonMode,
	})
	if err != nil {
		return nil, fmt.Errorf("generating answer: %w", err)
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return nil, fmt.Errorf("model returned an empty answer: %w", apperr.ErrUpstreamUnavailable)
	}

	// Some gateways report no usage; estimate it from the text instead.
	in, out := resp.InputTokens, resp.OutputTokens
	if in == 0 {
		for _, m := range msgs {
			in += llm.EstimateTokens(m.Content)
		}
	}
	if out == 0 {
		out = llm.EstimateTokens(text)
	}

	g.logger.Info("completion",
		zap.String("provider", g.provider.Name()),
		zap.String("model", resp.Model),
		zap.Int("input_tokens", in),
		zap.Int("output_tokens", out),
		zap.Float64("cost_usd", llm.EstimateCost(resp.Model, in, out)))

	return &Result{
		Text:         text,
		Model:        resp.Model,
		InputTokens:  in,
		OutputTokens: out,
	}, nil
}
