package classifier

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/heart-intake-server/internal/domain"
)

// New builds the configured classifier. The file backend loads its artifact here,
// once; the result is wrapped in the prediction cache when CacheSize is positive.
// A non-nil redis client adds the shared cache tier.
func New(config domain.ClassifierConfig, cache domain.CacheConfig, rdb *redis.Client, logger *logrus.Logger) (domain.Classifier, error) {
	var (
		inner domain.Classifier
		err   error
	)

	switch config.Backend {
	case domain.BackendFile, "":
		inner, err = LoadModel(config.ModelPath)
		if err != nil {
			return nil, fmt.Errorf("loading classifier: %w", err)
		}
	case domain.BackendRemote:
		inner = NewRemoteClassifier(config.Remote, logger)
	default:
		return nil, fmt.Errorf("unsupported classifier backend %q", config.Backend)
	}

	logger.WithFields(logrus.Fields{
		"backend": config.Backend,
		"model":   inner.Name(),
	}).Info("Classifier ready")

	if config.CacheSize <= 0 {
		return inner, nil
	}

	var opts []CacheOption
	if rdb != nil {
		opts = append(opts, WithRedis(rdb, cache.DefaultTTL))
	}
	return NewCachedClassifier(inner, config.CacheSize, logger, opts...)
}
