package track

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func okRunner(metrics Summary) Runner {
	return RunnerFunc(func(context.Context, Request) (Summary, error) {
		return metrics, nil
	})
}

func menuOf(t *testing.T, names []string, runners map[string]Runner) []Track {
	t.Helper()
	root := t.TempDir()
	tracks := make([]Track, 0, len(names))
	for _, name := range names {
		tracks = append(tracks, Track{
			Name:      name,
			OutputDir: filepath.Join(root, name),
			Runner:    runners[name],
		})
	}
	return tracks
}

func TestRunAllTracksSucceed(t *testing.T) {
	t.Parallel()

	names := []string{"technical", "content", "schema"}
	tracks := menuOf(t, names, map[string]Runner{
		"technical": okRunner(Summary{"score": 90}),
		"content":   okRunner(Summary{"score": 75}),
		"schema":    okRunner(Summary{"score": 60}),
	})

	o := NewOrchestrator(Config{Workers: 2, TrackTimeout: time.Second}, zap.NewNop())
	res, err := o.Run(context.Background(), "https://example.com/", tracks)
	require.NoError(t, err)
	require.Equal(t, 3, res.TotalTracks)
	require.Equal(t, 3, res.SuccessCount)
	require.Empty(t, res.FailedTracks)

	for i, r := range res.Tracks {
		require.Equal(t, names[i], r.Name, "results must be in submission order")
		require.Equal(t, StatusOK, r.Status)
		require.FileExists(t, r.SummaryPath)

		raw, err := os.ReadFile(r.SummaryPath)
		require.NoError(t, err)
		var summary map[string]any
		require.NoError(t, json.Unmarshal(raw, &summary))
		require.Contains(t, summary, "score")
	}
}

func TestRunIsolatesFailures(t *testing.T) {
	t.Parallel()

	names := []string{"a", "b", "c", "d"}
	tracks := menuOf(t, names, map[string]Runner{
		"a": okRunner(Summary{"ok": true}),
		"b": RunnerFunc(func(context.Context, Request) (Summary, error) {
			return nil, errors.New("analyzer exploded")
		}),
		"c": RunnerFunc(func(context.Context, Request) (Summary, error) {
			panic("unhandled condition")
		}),
		"d": okRunner(Summary{"ok": true}),
	})

	o := NewOrchestrator(Config{Workers: 4, TrackTimeout: time.Second}, zap.NewNop())
	res, err := o.Run(context.Background(), "https://example.com/", tracks)
	require.NoError(t, err, "failing tracks are reported, never raised")

	require.Equal(t, 2, res.SuccessCount)
	require.Equal(t, []string{"b", "c"}, res.FailedTracks)
	require.Equal(t, StatusOK, res.Tracks[0].Status)
	require.Equal(t, StatusFailed, res.Tracks[1].Status)
	require.Equal(t, "analyzer exploded", res.Tracks[1].Reason)
	require.Equal(t, StatusFailed, res.Tracks[2].Status)
	require.Contains(t, res.Tracks[2].Reason, "track panic")
	require.Equal(t, StatusOK, res.Tracks[3].Status)
}

func TestRunTimeoutDoesNotBlockSiblings(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	tracks := menuOf(t, []string{"hang", "fast"}, map[string]Runner{
		"hang": RunnerFunc(func(ctx context.Context, _ Request) (Summary, error) {
			select {
			case <-release:
			case <-ctx.Done():
			}
			return nil, ctx.Err()
		}),
		"fast": okRunner(Summary{"ok": true}),
	})

	o := NewOrchestrator(Config{Workers: 2, TrackTimeout: 50 * time.Millisecond}, zap.NewNop())
	res, err := o.Run(context.Background(), "https://example.com/", tracks)
	require.NoError(t, err)

	require.Equal(t, StatusFailed, res.Tracks[0].Status)
	require.Equal(t, "timeout", res.Tracks[0].Reason)
	require.Equal(t, StatusOK, res.Tracks[1].Status)
	require.Equal(t, []string{"hang"}, res.FailedTracks)
}

func TestRunDeterministicOrderDespiteCompletionOrder(t *testing.T) {
	t.Parallel()

	// Earlier tracks finish last; the report must still follow the menu.
	delays := map[string]time.Duration{"first": 80 * time.Millisecond, "second": 40 * time.Millisecond, "third": 0}
	names := []string{"first", "second", "third"}
	runners := make(map[string]Runner, len(names))
	for _, name := range names {
		delay := delays[name]
		runners[name] = RunnerFunc(func(ctx context.Context, _ Request) (Summary, error) {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			return Summary{"ok": true}, nil
		})
	}

	o := NewOrchestrator(Config{Workers: 3, TrackTimeout: time.Second}, zap.NewNop())
	for run := 0; run < 2; run++ {
		res, err := o.Run(context.Background(), "https://example.com/", menuOf(t, names, runners))
		require.NoError(t, err)
		got := make([]string, 0, len(res.Tracks))
		for _, r := range res.Tracks {
			got = append(got, r.Name)
		}
		require.Equal(t, names, got)
	}
}

func TestRunCapturesLogTail(t *testing.T) {
	t.Parallel()

	tracks := menuOf(t, []string{"chatty"}, map[string]Runner{
		"chatty": RunnerFunc(func(_ context.Context, req Request) (Summary, error) {
			for i := 0; i < 30; i++ {
				req.Logf("probe %d", i)
			}
			return nil, errors.New("gave up")
		}),
	})

	o := NewOrchestrator(Config{Workers: 1, TrackTimeout: time.Second}, zap.NewNop())
	res, err := o.Run(context.Background(), "https://example.com/", tracks)
	require.NoError(t, err)
	require.Contains(t, res.Tracks[0].OutputTail, "probe 29")
	require.NotContains(t, res.Tracks[0].OutputTail, "probe 9\n", "only the tail is kept")
}

func TestRunSetupFailure(t *testing.T) {
	t.Parallel()

	blocker := filepath.Join(t.TempDir(), "occupied")
	require.NoError(t, os.WriteFile(blocker, []byte("file, not dir"), 0o600))

	tracks := []Track{{
		Name:      "bad",
		OutputDir: filepath.Join(blocker, "nested"),
		Runner:    okRunner(nil),
	}}

	o := NewOrchestrator(Config{Workers: 1, TrackTimeout: time.Second}, zap.NewNop())
	_, err := o.Run(context.Background(), "https://example.com/", tracks)
	require.Error(t, err)
}

func TestWriteRunSummary(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path, err := WriteRunSummary(dir, OrchestrationResult{
		TotalTracks:  1,
		SuccessCount: 1,
		FailedTracks: []string{},
		Tracks:       []Result{{Name: "technical", Status: StatusOK}},
	})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "ORCHESTRATION-SUMMARY.json"), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded OrchestrationResult
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, 1, decoded.SuccessCount)
}
