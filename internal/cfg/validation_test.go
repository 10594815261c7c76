package cfg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validSettings() Settings {
	return Settings{
		DatasetPath:   "data/wine.data",
		LabelColumn:   "cultivar",
		Delimiter:     ',',
		TestFraction:  0.3,
		Folds:         5,
		TreeCounts:    []int{10, 50},
		FeatureCounts: []int{4},
		Shards:        4,
		TopN:          20,
		MetricsPort:   8080,
		FetchTimeout:  30 * time.Second,
		FetchRetries:  3,
	}
}

func TestValidateSettings(t *testing.T) {
	t.Parallel()

	s := validSettings()
	assert.NoError(t, validateSettings(&s))
}

func TestValidateSettingsRejectsBadValues(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"empty dataset path", func(s *Settings) { s.DatasetPath = "" }},
		{"zero test fraction", func(s *Settings) { s.TestFraction = 0 }},
		{"test fraction one", func(s *Settings) { s.TestFraction = 1 }},
		{"single fold", func(s *Settings) { s.Folds = 1 }},
		{"too many folds", func(s *Settings) { s.Folds = 21 }},
		{"zero tree count", func(s *Settings) { s.TreeCounts = []int{0} }},
		{"huge tree count", func(s *Settings) { s.TreeCounts = []int{1001} }},
		{"zero features per split", func(s *Settings) { s.FeatureCounts = []int{0} }},
		{"zero shards", func(s *Settings) { s.Shards = 0 }},
		{"negative topN", func(s *Settings) { s.TopN = -1 }},
		{"privileged metrics port", func(s *Settings) { s.MetricsPort = 80 }},
		{"dashboard port collision", func(s *Settings) { s.DashboardPort = 8080 }},
		{"tiny fetch timeout", func(s *Settings) { s.FetchTimeout = time.Millisecond }},
		{"negative retries", func(s *Settings) { s.FetchRetries = -1 }},
		{"blank label column", func(s *Settings) { s.LabelColumn = "  " }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := validSettings()
			tc.mutate(&s)
			assert.Error(t, validateSettings(&s))
		})
	}
}

func TestParseDelimiter(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ',', int32(parseDelimiter("")))
	assert.Equal(t, ',', int32(parseDelimiter("comma")))
	assert.Equal(t, '\t', int32(parseDelimiter("tab")))
	assert.Equal(t, ';', int32(parseDelimiter(";")))
	assert.Equal(t, '|', int32(parseDelimiter("|")))
}
