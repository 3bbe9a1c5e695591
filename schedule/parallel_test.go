package schedule_test

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/docsift/docsift/schedule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noteEcho answers extraction prompts with a marker naming the
// document they contained, so the final synthesis prompt reveals which
// partial landed where.
func noteEcho(p string) string {
	re := regexp.MustCompile(`NOTE: Note (\d+)`)
	matches := re.FindAllStringSubmatch(p, -1)
	if len(matches) == 0 {
		return "final answer"
	}
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m[1]
	}
	return "extract-of-" + strings.Join(ids, "-")
}

func TestParallelRun_SingleDocumentSkipsPool(t *testing.T) {
	backend := &recordingBackend{}
	p := schedule.NewParallel(newTestEngine(backend), 2)

	out, err := p.Run(context.Background(), makeDocs(1), "question")
	require.NoError(t, err)
	assert.Equal(t, "summary-1", out)
	assert.Equal(t, 1, backend.calls())
	assert.Equal(t, int64(0), p.Completed())
}

func TestParallelRun_PerDocumentBelowThreshold(t *testing.T) {
	backend := &recordingBackend{respond: noteEcho}
	p := schedule.NewParallel(newTestEngine(backend), 2)

	_, err := p.Run(context.Background(), makeDocs(3), "what happened?")
	require.NoError(t, err)

	// One extraction per document plus one synthesis call.
	assert.Equal(t, 4, backend.calls())
	assert.Equal(t, int64(3), p.Completed())

	final := backend.lastPrompt()
	assert.Contains(t, final, "Based on these note summaries, answer the original question: what happened?")
	for i := 0; i < 3; i++ {
		assert.Contains(t, final,
			fmt.Sprintf("NOTE SUMMARY %d - Note %d:\n\nextract-of-%d", i+1, i, i))
	}
}

func TestParallelRun_OrderFollowsDocumentsNotCompletion(t *testing.T) {
	// Earlier documents finish last; the merged output must still list
	// them first.
	backend := &recordingBackend{
		respond: noteEcho,
		delayFor: func(p string) time.Duration {
			re := regexp.MustCompile(`NOTE: Note (\d+)`)
			m := re.FindStringSubmatch(p)
			if m == nil {
				return 0
			}
			switch m[1] {
			case "0":
				return 60 * time.Millisecond
			case "1":
				return 30 * time.Millisecond
			default:
				return 0
			}
		},
	}
	p := schedule.NewParallel(newTestEngine(backend), 4)

	_, err := p.Run(context.Background(), makeDocs(3), "question")
	require.NoError(t, err)

	final := backend.lastPrompt()
	first := strings.Index(final, "extract-of-0")
	second := strings.Index(final, "extract-of-1")
	third := strings.Index(final, "extract-of-2")
	require.NotEqual(t, -1, first)
	require.NotEqual(t, -1, second)
	require.NotEqual(t, -1, third)
	assert.Less(t, first, second)
	assert.Less(t, second, third)
}

func TestParallelRun_GroupsAboveThreshold(t *testing.T) {
	backend := &recordingBackend{respond: noteEcho}
	p := schedule.NewParallel(newTestEngine(backend), 2)

	_, err := p.Run(context.Background(), makeDocs(10), "question")
	require.NoError(t, err)

	// 10 docs across 2 workers is two groups of five, then synthesis.
	assert.Equal(t, 3, backend.calls())
	assert.Equal(t, int64(2), p.Completed())

	final := backend.lastPrompt()
	assert.Contains(t, final, "GROUP 1 (5 notes):\n\nextract-of-0-1-2-3-4")
	assert.Contains(t, final, "GROUP 2 (5 notes):\n\nextract-of-5-6-7-8-9")
	assert.Contains(t, final, "Based on these document group summaries,")
}

func TestParallelRun_FailedTaskBecomesPlaceholder(t *testing.T) {
	backend := &recordingBackend{
		respond: noteEcho,
		failWhen: func(p string) error {
			if strings.Contains(p, "NOTE: Note 1") && !strings.Contains(p, "NOTE SUMMARY") {
				return errors.New("connection reset")
			}
			return nil
		},
	}
	p := schedule.NewParallel(newTestEngine(backend), 2)

	out, err := p.Run(context.Background(), makeDocs(3), "question")
	require.NoError(t, err)
	assert.NotEmpty(t, out)
	assert.Equal(t, int64(1), p.Failed())

	final := backend.lastPrompt()
	assert.Contains(t, final, "NOTE SUMMARY 2 - Note 1:\n\nError:")
	assert.Contains(t, final, "extract-of-0")
	assert.Contains(t, final, "extract-of-2")
}

func TestParallelRun_EmptyDocuments(t *testing.T) {
	p := schedule.NewParallel(newTestEngine(&recordingBackend{}), 2)
	_, err := p.Run(context.Background(), nil, "question")
	require.Error(t, err)
}

func TestNewParallel_DefaultsWorkerCount(t *testing.T) {
	backend := &recordingBackend{}
	p := schedule.NewParallel(newTestEngine(backend), 0)

	_, err := p.Run(context.Background(), makeDocs(2), "question")
	require.NoError(t, err)
	assert.Equal(t, 3, backend.calls())
}
