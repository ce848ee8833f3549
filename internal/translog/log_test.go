package translog

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studio/internal/domain"
)

func snap(status domain.JobStatus, msg string) domain.StatusSnapshot {
	return domain.StatusSnapshot{JobID: "job-1", Status: status, Message: msg}
}

func TestResetStartsWithConnectingEntry(t *testing.T) {
	l := New(nil)
	l.Append("stale line from a previous job")

	entry := l.Reset("job-1")

	assert.Equal(t, "Connecting to job job-1...", entry.Text)
	assert.Equal(t, []string{"Connecting to job job-1..."}, l.Texts())
	assert.Greater(t, entry.Seq, int64(1), "sequence must keep increasing across resets")
}

func TestObserveDedupesBySubstring(t *testing.T) {
	l := New(nil)
	l.Reset("job-1")

	_, ok := l.Observe(snap(domain.JobStatusQueued, "Job queued"))
	require.True(t, ok)

	_, ok = l.Observe(snap(domain.JobStatusQueued, "Job queued"))
	assert.False(t, ok, "unchanged message must not be appended twice")

	_, ok = l.Observe(snap(domain.JobStatusProcessing, "Generating audio (step 12/60)"))
	require.True(t, ok)

	_, ok = l.Observe(snap(domain.JobStatusProcessing, "Generating audio"))
	assert.False(t, ok, "message contained in the last entry is treated as unchanged")

	_, ok = l.Observe(snap(domain.JobStatusProcessing, ""))
	assert.False(t, ok, "empty message is never logged")

	assert.Equal(t, []string{
		"Connecting to job job-1...",
		"Job queued",
		"Generating audio (step 12/60)",
	}, l.Texts())
}

func TestObserveKeepsMessageVerbatim(t *testing.T) {
	l := New(nil)
	l.Reset("job-1")

	entry, ok := l.Observe(snap(domain.JobStatusProcessing, " Generating "))
	require.True(t, ok)
	assert.Equal(t, " Generating ", entry.Text)

	_, ok = l.Observe(snap(domain.JobStatusProcessing, "Generating"))
	assert.False(t, ok, "contained in the previous raw text")

	_, ok = l.Observe(snap(domain.JobStatusProcessing, "Generating  audio"))
	assert.True(t, ok)
}

func TestObserveComparesOnlyWithLastEntry(t *testing.T) {
	l := New(nil)
	l.Reset("job-1")
	l.Observe(snap(domain.JobStatusQueued, "Job queued"))
	l.Append(PollingErrorText)

	_, ok := l.Observe(snap(domain.JobStatusQueued, "Job queued"))
	assert.True(t, ok, "dedupe is against the most recent entry, not global")
}

func TestSnapshotToTextDoesNotAppend(t *testing.T) {
	l := New(nil)
	l.Reset("job-1")
	text, ok := l.SnapshotToText(snap(domain.JobStatusQueued, "Job queued"))
	require.True(t, ok)
	assert.Equal(t, "Job queued", text)
	assert.Equal(t, 1, l.Len())
}

func TestSinceReturnsNewerEntries(t *testing.T) {
	l := New(nil)
	first := l.Reset("job-1")
	l.Append("a")
	l.Append("b")

	got := l.Since(first.Seq)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Text)
	assert.Equal(t, "b", got[1].Text)
	assert.Empty(t, l.Since(got[1].Seq))
}

func TestFailureText(t *testing.T) {
	assert.Equal(t, "Execution failed: OOM", FailureText("OOM"))
	assert.Equal(t, "Execution failed: Unknown backend error", FailureText(" "))
}

// Randomized sequences of snapshots must never shrink the log or produce two
// adjacent message entries with the same text.
func TestObserveInvariantsUnderRandomSequences(t *testing.T) {
	messages := []string{"", "Job queued", "Generating", "Generating audio", "Saving", "Done"}
	statuses := []domain.JobStatus{domain.JobStatusQueued, domain.JobStatusProcessing, domain.JobStatusCompleted}
	rng := rand.New(rand.NewSource(7))

	for run := 0; run < 200; run++ {
		l := New(nil)
		l.Reset("job-1")
		prevLen := l.Len()
		for i := 0; i < 30; i++ {
			l.Observe(snap(statuses[rng.Intn(len(statuses))], messages[rng.Intn(len(messages))]))
			require.GreaterOrEqual(t, l.Len(), prevLen)
			prevLen = l.Len()
		}
		texts := l.Texts()
		for i := 1; i < len(texts); i++ {
			require.False(t, strings.Contains(texts[i-1], texts[i]), "adjacent entries %q, %q", texts[i-1], texts[i])
		}
		entries := l.Entries()
		for i := 1; i < len(entries); i++ {
			require.Greater(t, entries[i].Seq, entries[i-1].Seq)
		}
	}
}
