package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/parsea-dev/parsea/internal/cancel"
	"github.com/parsea-dev/parsea/internal/common"
	"github.com/parsea-dev/parsea/internal/model"
)

// Classifier implements service.TransactionClassifier using LLM APIs.
// Classification failures of any kind degrade to the safe default with a
// nil error; the only error a caller ever sees is common.ErrCancelled.
type Classifier struct {
	client      Client
	registry    cancel.Registry
	cache       *resultCache
	rateLimiter *rateLimiter
	logger      *slog.Logger
}

// NewClassifier creates a new LLM-based classifier.
func NewClassifier(cfg Config, registry cancel.Registry, logger *slog.Logger) (*Classifier, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	if registry == nil {
		return nil, fmt.Errorf("cancellation registry is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Classifier{
		client:      client,
		registry:    registry,
		cache:       newResultCache(cfg.CacheTTL),
		rateLimiter: newRateLimiter(cfg.RateLimit),
		logger:      logger,
	}, nil
}

// Classify determines whether a single transaction is a business or personal
// expense for the given user.
func (c *Classifier) Classify(ctx context.Context, txn model.ExtractedTransaction, userID string) (model.ClassificationResult, error) {
	if c.registry.IsCancelled(userID) {
		return model.ClassificationResult{}, common.ErrCancelled
	}

	// Check cache first
	key := txn.Hash()
	if result, found := c.cache.get(key); found {
		c.logger.Debug("cache hit for transaction",
			"merchant", txn.Merchant,
			"amount", txn.Amount.String())
		return result, nil
	}

	if err := c.rateLimiter.wait(ctx); err != nil {
		c.logger.Warn("rate limiter wait failed, using safe default", "error", err)
		return model.SafeDefault("Error in classification: " + err.Error()), nil
	}

	response, err := c.client.Complete(ctx, BuildClassificationPrompt(txn))
	if err != nil {
		c.logger.Warn("classification request failed, using safe default",
			"merchant", txn.Merchant,
			"error", err)
		return model.SafeDefault("Error in classification: " + err.Error()), nil
	}

	result, parseErr := ParseClassification(cleanMarkdownWrapper(response))
	if parseErr != nil {
		// The parser already produced the safe default; log and carry on,
		// but keep the fallback out of the cache so a later upload of the
		// same transaction gets a fresh model call.
		c.logger.Warn("unparseable classification response",
			"merchant", txn.Merchant,
			"error", parseErr)
	} else {
		c.cache.set(key, result)
	}

	c.logger.Info("transaction classified",
		"merchant", txn.Merchant,
		"classification", result.Class,
		"confidence", result.Confidence,
		"category", result.Category)

	return result, nil
}

// ExtractTransactions pulls structured transactions out of raw statement
// text. Extraction failures yield an empty slice with a nil error; like
// Classify, the only propagated error is common.ErrCancelled.
func (c *Classifier) ExtractTransactions(ctx context.Context, statementText, userID string) ([]model.ExtractedTransaction, error) {
	if c.registry.IsCancelled(userID) {
		return nil, common.ErrCancelled
	}

	if err := c.rateLimiter.wait(ctx); err != nil {
		c.logger.Warn("rate limiter wait failed during extraction", "error", err)
		return []model.ExtractedTransaction{}, nil
	}

	response, err := c.client.Complete(ctx, BuildExtractionPrompt(statementText))
	if err != nil {
		c.logger.Warn("extraction request failed", "error", err)
		return []model.ExtractedTransaction{}, nil
	}

	transactions := ParseTransactions(cleanMarkdownWrapper(response))

	c.logger.Info("statement text extracted",
		"transactions", len(transactions),
		"text_length", len(statementText))

	return transactions, nil
}

// Close releases the classifier's background resources.
func (c *Classifier) Close() {
	c.cache.Close()
	c.rateLimiter.Close()
}
