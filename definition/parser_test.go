package definition

import (
	"embed"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//go:embed testdata/*
var testFS embed.FS

func TestParseCatalog(t *testing.T) {
	data, err := testFS.ReadFile("testdata/scoring.bpmn.xml")
	require.NoError(t, err)

	catalog, err := ParseCatalog("def-scoring:1", data)
	require.NoError(t, err)
	assert.Equal(t, "def-scoring:1", catalog.DefinitionID)
	assert.Equal(t, 3, catalog.Len(), "activity without id must be skipped")

	score, ok := catalog.Lookup("score")
	require.True(t, ok)
	assert.Equal(t, "Score Documents", score.Name)
	assert.Contains(t, score.Documentation, "Scores a document batch.")
	require.NotNil(t, score.Properties)
	// structured extension properties win over documentation fallback
	assert.Equal(t, "Score", score.Properties.ServiceType)
	assert.Equal(t, "scorer", score.Properties.ServiceName)
	assert.Equal(t, 2000, score.Properties.TimeoutMs)
	require.NotNil(t, score.Properties.RetryCount)
	assert.Equal(t, 1, *score.Properties.RetryCount)
	// unknown keys survive from both sources
	assert.Equal(t, "batch", score.Properties.Extensions["mode"])
	assert.Equal(t, "us-east", score.Properties.Extensions["region"])

	summarize, ok := catalog.Lookup("summarize")
	require.True(t, ok)
	require.NotNil(t, summarize.Properties)
	// documentation metadata is the only source here
	assert.Equal(t, "llm", summarize.Properties.ServiceType)
	assert.Equal(t, "gpt4", summarize.Properties.ServiceName)
	assert.Equal(t, 30000, summarize.Properties.TimeoutMs)

	broken, ok := catalog.Lookup("broken")
	require.True(t, ok)
	require.NotNil(t, broken.Properties)
	assert.Equal(t, 0, broken.Properties.TimeoutMs, "malformed timeout must stay unset")
	assert.Nil(t, broken.Properties.RetryCount, "negative retry count must stay unset")
	assert.Equal(t, "soon", broken.Properties.Extensions["timeoutMs"])
	assert.Equal(t, "-3", broken.Properties.Extensions["retryCount"])
}

func TestParseCatalog_Empty(t *testing.T) {
	catalog, err := ParseCatalog("def-empty", []byte(`<definitions><process id="p"/></definitions>`))
	require.NoError(t, err)
	assert.Equal(t, 0, catalog.Len())

	_, ok := catalog.Lookup("anything")
	assert.False(t, ok)
}

func TestParseCatalog_Malformed(t *testing.T) {
	_, err := ParseCatalog("def-bad", []byte(`<definitions><serviceTask id="x"></definitions>`))
	require.Error(t, err)
	assert.True(t, IsMetadataError(err))
}

func TestParseCatalog_SelfClosingActivity(t *testing.T) {
	catalog, err := ParseCatalog("def-min", []byte(`<definitions><serviceTask id="nop"/></definitions>`))
	require.NoError(t, err)
	activity, ok := catalog.Lookup("nop")
	require.True(t, ok)
	require.NotNil(t, activity.Properties)
	assert.False(t, activity.Properties.HasService())
}
