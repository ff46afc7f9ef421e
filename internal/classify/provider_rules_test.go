package classify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retracehq/retrace/pkg/models"
)

func TestRulesProvider_AlwaysAvailable(t *testing.T) {
	p := NewRulesProvider()
	available, err := p.IsAvailable(context.Background(), RouterContext{})
	require.NoError(t, err)
	assert.True(t, available)
}

func TestRulesProvider_Classify(t *testing.T) {
	p := NewRulesProvider()

	tests := []struct {
		name         string
		key          string
		bundleID     string
		wantCategory string
	}{
		{"youtube key", "youtube:abc", "", "entertainment"},
		{"web key", "web:example_com", "", "browsing"},
		{"xcode bundle", "", "com.apple.dt.Xcode", "development"},
		{"slack bundle", "", "com.tinyspeck.slackmacgap.Slack", "communication"},
		{"unknown", "app:com.example.unknown:doc", "com.example.unknown", "uncategorized"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := Input{Context: &models.ActivityContext{
				Key: tt.key,
				App: models.ForegroundApp{BundleID: tt.bundleID},
			}}
			result, err := p.Classify(context.Background(), input, RouterContext{})
			require.NoError(t, err)
			require.NotNil(t, result)
			assert.Equal(t, tt.wantCategory, result.Category)
		})
	}
}

func TestRulesProvider_NilContext(t *testing.T) {
	p := NewRulesProvider()
	result, err := p.Classify(context.Background(), Input{}, RouterContext{})
	require.NoError(t, err)
	assert.Equal(t, "uncategorized", result.Category)
}
