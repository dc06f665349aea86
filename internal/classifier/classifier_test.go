package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heart-intake-server/internal/domain"
)

func TestNew(t *testing.T) {
	cache := domain.CacheConfig{}

	c, err := New(domain.ClassifierConfig{Backend: domain.BackendFile, ModelPath: shippedModel}, cache, nil, quietLogger())
	require.NoError(t, err)
	assert.IsType(t, &Model{}, c)

	c, err = New(domain.ClassifierConfig{Backend: domain.BackendFile, ModelPath: shippedModel, CacheSize: 8}, cache, nil, quietLogger())
	require.NoError(t, err)
	assert.IsType(t, &CachedClassifier{}, c)
	assert.Equal(t, "heart-attack-svm-linear", c.Name())

	c, err = New(domain.ClassifierConfig{
		Backend: domain.BackendRemote,
		Remote:  domain.RemoteClassifierConfig{BaseURL: "http://models.internal:8000"},
	}, cache, nil, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, "remote:http://models.internal:8000", c.Name())
}

func TestNew_Errors(t *testing.T) {
	_, err := New(domain.ClassifierConfig{Backend: "pickle"}, domain.CacheConfig{}, nil, quietLogger())
	assert.Error(t, err)

	_, err = New(domain.ClassifierConfig{Backend: domain.BackendFile, ModelPath: "testdata/missing.json"}, domain.CacheConfig{}, nil, quietLogger())
	assert.Error(t, err)
}
