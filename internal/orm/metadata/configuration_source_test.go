package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigurationSource_Overrides(t *testing.T) {
	tests := []struct {
		name     string
		src      ConfigurationSource
		old      ConfigurationSource
		override bool
		strictly bool
	}{
		{name: "convention over none", src: SourceConvention, old: SourceNone, override: true, strictly: true},
		{name: "convention over convention", src: SourceConvention, old: SourceConvention, override: true, strictly: false},
		{name: "convention over annotation", src: SourceConvention, old: SourceDataAnnotation, override: false, strictly: false},
		{name: "annotation over convention", src: SourceDataAnnotation, old: SourceConvention, override: true, strictly: true},
		{name: "annotation over explicit", src: SourceDataAnnotation, old: SourceExplicit, override: false, strictly: false},
		{name: "explicit over explicit", src: SourceExplicit, old: SourceExplicit, override: true, strictly: false},
		{name: "explicit over annotation", src: SourceExplicit, old: SourceDataAnnotation, override: true, strictly: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.override, tt.src.Overrides(tt.old))
			assert.Equal(t, tt.strictly, tt.src.OverridesStrictly(tt.old))
		})
	}
}

func TestConfigurationSource_Max(t *testing.T) {
	assert.Equal(t, SourceExplicit, SourceConvention.Max(SourceExplicit))
	assert.Equal(t, SourceExplicit, SourceExplicit.Max(SourceConvention))
	assert.Equal(t, SourceDataAnnotation, SourceNone.Max(SourceDataAnnotation))
	assert.Equal(t, SourceConvention, SourceConvention.Max(SourceConvention))
}

func TestConfigurationSource_Parse(t *testing.T) {
	for _, src := range []ConfigurationSource{SourceNone, SourceConvention, SourceDataAnnotation, SourceExplicit} {
		parsed, err := ParseConfigurationSource(src.String())
		require.NoError(t, err)
		assert.Equal(t, src, parsed)
	}

	parsed, err := ParseConfigurationSource("annotation")
	require.NoError(t, err)
	assert.Equal(t, SourceDataAnnotation, parsed)

	_, err = ParseConfigurationSource("user")
	assert.Error(t, err)
	assert.Equal(t, "unknown", ConfigurationSource(42).String())
}
