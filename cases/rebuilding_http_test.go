package cases

import (
	"testing"
	"time"

	"github.com/launchdarkly/roll-forward-tests/harness"
	"github.com/launchdarkly/roll-forward-tests/suitedef"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebuildingHTTPSuiteIsValid(t *testing.T) {
	cases, err := RebuildingHTTP().TestCases(suitedef.Defaults{BaseDir: "/work/rhttp_repo", Port: 4321})
	require.NoError(t, err)
	require.Len(t, cases, 7)

	var tags []string
	for _, c := range cases {
		tags = append(tags, c.Tag)
		assert.Equal(t, 500*time.Millisecond, c.Server.StartupGrace, c.Name)
		assert.Equal(t, 5*time.Second, c.Server.HardDeadline, c.Name)
		assert.NotEmpty(t, c.Steps, c.Name)
		for _, s := range c.Steps {
			_, ok := s.(harness.Probe)
			assert.True(t, ok, c.Name)
		}
	}
	assert.Equal(t, []string{"chapter_2", "chapter_3", "chapter_4", "chapter_5", "chapter_6", "chapter_7", "chapter_8"}, tags)
}

func TestRebuildingHTTPServerLocations(t *testing.T) {
	cases, err := RebuildingHTTP().TestCases(suitedef.Defaults{BaseDir: "/work/rhttp_repo", Port: 4321})
	require.NoError(t, err)

	byTag := make(map[string]harness.TestCase)
	for _, c := range cases {
		byTag[c.Tag] = c
	}
	assert.Equal(t, "/work/rhttp_repo", byTag["chapter_2"].Server.Dir)
	assert.Equal(t, 4321, byTag["chapter_2"].Server.Port)
	assert.Equal(t, "/work/rhttp_repo/blue_eyes", byTag["chapter_5"].Server.Dir)
	assert.Equal(t, "ruby -I./lib -rblue_eyes/dsl little_app.rb", byTag["chapter_5"].Server.Command)
	assert.Equal(t, 4567, byTag["chapter_8"].Server.Port)
	assert.Equal(t, "/work/rhttp_repo", byTag["chapter_8"].Server.Dir)
}

func TestRebuildingHTTPProbesFollowConfiguredPort(t *testing.T) {
	cases, err := RebuildingHTTP().TestCases(suitedef.Defaults{BaseDir: "/work/rhttp_repo", Port: 5000})
	require.NoError(t, err)

	byTag := make(map[string]harness.TestCase)
	for _, c := range cases {
		byTag[c.Tag] = c
	}
	assert.Equal(t, 5000, byTag["chapter_2"].Server.Port)
	assert.Equal(t, "curl -v http://localhost:5000", byTag["chapter_2"].Steps[0].(harness.Probe).Command)
	assert.Equal(t, "curl http://localhost:5000/frank", byTag["chapter_5"].Steps[0].(harness.Probe).Command)
	assert.Equal(t, 4567, byTag["chapter_8"].Server.Port)
	assert.Equal(t, "curl http://localhost:4567/", byTag["chapter_8"].Steps[0].(harness.Probe).Command)
}
