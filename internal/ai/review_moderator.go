package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shinyyama/campus-exchange/internal/logging"
	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

const defaultModerationModel = "gemini-2.5-flash"

// ReviewModerator asks Gemini whether a rating review breaks the community rules.
type ReviewModerator struct {
	model    string
	generate func(ctx context.Context, prompt string) (string, error)
}

func NewReviewModerator(ctx context.Context, apiKey, model string) (*ReviewModerator, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini api key is empty")
	}
	if model == "" {
		model = defaultModerationModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	m := &ReviewModerator{model: model}
	m.generate = func(ctx context.Context, prompt string) (string, error) {
		parts := []*genai.Part{genai.NewPartFromText(prompt)}
		contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
		temp := float32(0)
		res, err := client.Models.GenerateContent(ctx, m.model, contents, &genai.GenerateContentConfig{
			Temperature: &temp,
		})
		if err != nil {
			return "", err
		}
		return res.Text(), nil
	}
	return m, nil
}

func (m *ReviewModerator) ModerateReview(ctx context.Context, text string) (bool, string, error) {
	log := logging.FromContext(ctx).WithField("model", m.model)
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	raw, err := m.generate(ctx, BuildModerationPrompt(text))
	if err != nil {
		log.WithError(err).Warn("moderation stage=gemini_fail")
		return false, "", fmt.Errorf("gemini generate: %w", err)
	}
	flagged, reason, err := ParseVerdict(raw)
	if err != nil {
		log.WithError(err).WithField("len", len(raw)).Warn("moderation stage=parse_fail")
		return false, "", err
	}
	log.WithFields(logrus.Fields{
		"flagged": flagged,
		"ms":      time.Since(start).Milliseconds(),
	}).Debug("moderation stage=done")
	return flagged, reason, nil
}
