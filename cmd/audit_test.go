package cmd

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/avalonreset/siteaudit/internal/config"
)

func baseConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	return cfg
}

func TestApplyAuditFlagsOverrides(t *testing.T) {
	t.Parallel()

	cmd := newAuditCmd()
	require.NoError(t, cmd.Flags().Set("max-pages", "120"))
	require.NoError(t, cmd.Flags().Set("ignore-robots", "true"))
	require.NoError(t, cmd.Flags().Set("no-tracks", "true"))
	require.NoError(t, cmd.Flags().Set("disable-track", "geo"))
	require.NoError(t, cmd.Flags().Set("perf-source", "off"))
	require.NoError(t, cmd.Flags().Set("output", "/tmp/elsewhere"))

	flags := &auditFlags{
		maxPages:      120,
		ignoreRobots:  true,
		noTracks:      true,
		disableTracks: []string{"geo"},
		perfSource:    "off",
		outputDir:     "/tmp/elsewhere",
	}

	cfg := applyAuditFlags(baseConfig(t), cmd, flags)

	require.Equal(t, 120, cfg.Crawl.MaxPages)
	require.True(t, cfg.Crawl.IgnoreRobots)
	require.False(t, cfg.Tracks.Enabled)
	require.True(t, cfg.TrackDisabled("geo"))
	require.Equal(t, "off", cfg.Perf.Source)
	require.Equal(t, "/tmp/elsewhere", cfg.Output.Dir)
}

func TestApplyAuditFlagsLeavesDefaults(t *testing.T) {
	t.Parallel()

	cmd := newAuditCmd()
	cfg := applyAuditFlags(baseConfig(t), cmd, &auditFlags{})

	require.Equal(t, 50, cfg.Crawl.MaxPages)
	require.True(t, cfg.Tracks.Enabled)
	require.False(t, cfg.Crawl.IgnoreRobots)
}

func TestAuditOptionsMapping(t *testing.T) {
	t.Parallel()

	cfg := baseConfig(t)
	cfg.Crawl.DelayMs = 250
	cfg.Tracks.Disabled = []string{"images"}

	opts := auditOptions(cfg)

	require.Equal(t, cfg.Crawl.UserAgent, opts.UserAgent)
	require.Equal(t, 50, opts.MaxPages)
	require.Equal(t, 250*time.Millisecond, opts.Delay)
	require.Equal(t, 15*time.Second, opts.FetchTimeout)
	require.Equal(t, 300*time.Second, opts.TrackTimeout)
	require.True(t, opts.TrackDisabled("images"))
	require.False(t, opts.TrackDisabled("geo"))
}

func TestAuditCommandRequiresURL(t *testing.T) {
	t.Parallel()

	root := newRootCmd()
	root.SetArgs([]string{"audit"})
	root.SetOut(new(bytes.Buffer))
	root.SetErr(new(bytes.Buffer))

	err := root.Execute()
	require.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	t.Parallel()

	out := new(bytes.Buffer)
	root := newRootCmd()
	root.SetArgs([]string{"version"})
	root.SetOut(out)

	require.NoError(t, root.Execute())
	require.Contains(t, out.String(), "siteaudit")
}
