package extraction

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/zombor/receipt-sorter/internal/domain"
	"github.com/zombor/receipt-sorter/internal/oracle"
)

const (
	// DefaultThreshold is the confidence below which receipts go to review
	DefaultThreshold  = 70
	defaultConfidence = 50
)

// Classifier assigns a tax category to a Record. It never fails: any oracle
// problem degrades to the fallback classification.
type Classifier struct {
	oracle    oracle.Oracle
	threshold domain.Confidence
	timeout   time.Duration
	logger    *slog.Logger
}

// NewClassifier creates a Classifier. A threshold outside [0,100] is clamped.
func NewClassifier(o oracle.Oracle, threshold int, timeout time.Duration, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Classifier{
		oracle:    o,
		threshold: domain.NewConfidence(threshold),
		timeout:   timeout,
		logger:    logger,
	}
}

// Classify asks the classification oracle for a category and confidence
func (c *Classifier) Classify(ctx context.Context, record domain.Record) domain.Classification {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reply, err := c.oracle.Complete(ctx, buildClassificationPrompt(record))
	if err != nil {
		c.logger.Error("Error categorizing receipt", "error", err)
		return domain.Fallback
	}

	cls, ok := c.parse(reply)
	if !ok {
		return domain.Fallback
	}

	c.logger.Info("Categorized receipt", "category", cls.Category, "confidence", cls.Confidence)
	return cls
}

// NeedsReview reports whether confidence is strictly below the threshold
func (c *Classifier) NeedsReview(confidence domain.Confidence) bool {
	return confidence < c.threshold
}

// Threshold returns the configured review threshold
func (c *Classifier) Threshold() domain.Confidence {
	return c.threshold
}

func (c *Classifier) parse(reply string) (domain.Classification, bool) {
	fields, err := decodeReply(reply)
	if err != nil {
		c.logger.Warn("Failed to parse categorization response", "error", err)
		return domain.Classification{}, false
	}

	raw, _ := fields["category"].(string)
	category, ok := domain.ParseCategory(raw)
	if !ok {
		c.logger.Warn("Invalid category, defaulting to Other", "category", fields["category"])
	}

	return domain.Classification{
		Category:   category,
		Confidence: parseConfidence(fields["confidence"]),
	}, true
}

// parseConfidence reads a numeric confidence, defaulting to 50 when the value
// is missing or not a number.
func parseConfidence(v any) domain.Confidence {
	var s string
	switch t := v.(type) {
	case json.Number:
		s = t.String()
	case string:
		s = strings.TrimSuffix(strings.TrimSpace(t), "%")
	default:
		return defaultConfidence
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return defaultConfidence
	}
	f = math.Max(-1, math.Min(101, f))
	return domain.NewConfidence(int(f))
}
