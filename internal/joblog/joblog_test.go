package joblog

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2024, 3, 1, 2, 0, 0, 0, time.UTC)

func testEntry() Entry {
	return Entry{
		Timestamp: testTime,
		Job:       "post-interest",
		RunID:     "5b8f0c1e-4f6a-4c55-8a9d-0d3c1a2b3c4d",
		TenantID:  "default",
		AsOfDate:  "2024-03-01",
		Outcome:   OutcomeFailed,
		Processed: 25,
		Failures:  1,
		Message:   "Job post-interest failed (run 5b8f0c1e-4f6a-4c55-8a9d-0d3c1a2b3c4d): one or more steps in the job failed\naccount 13: connection reset, \"retry\"",
	}
}

func TestAppend_NewFile(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "logs"))
	require.NoError(t, l.Append(testEntry()))

	entries, err := l.Read()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, testEntry(), entries[0], "multi-line messages with quotes survive")
}

func TestAppend_ExistingFile(t *testing.T) {
	l := New(t.TempDir())
	require.NoError(t, l.Append(testEntry()))

	ok := testEntry()
	ok.Job = "update-dormancy"
	ok.Outcome = OutcomeSuccess
	ok.Failures = 0
	ok.Message = ""
	require.NoError(t, l.Append(ok))

	entries, err := l.Read()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "post-interest", entries[0].Job)
	assert.Equal(t, "update-dormancy", entries[1].Job)
	assert.True(t, entries[0].Failed())
	assert.False(t, entries[1].Failed())

	raw, err := os.ReadFile(l.Path())
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(raw), Header), "header written once")
}

func TestAppend_Concurrent(t *testing.T) {
	l := New(t.TempDir())
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, l.Append(testEntry()))
		}()
	}
	wg.Wait()

	entries, err := l.Read()
	require.NoError(t, err)
	assert.Len(t, entries, 20)
}

func TestRead_NotFound(t *testing.T) {
	entries, err := New(t.TempDir()).Read()
	require.NoError(t, err)
	assert.Nil(t, entries)
}

func TestRead_Malformed(t *testing.T) {
	dir := t.TempDir()
	content := Header + "\nnot-a-time,post-interest,r,default,2024-03-01,failed,1,1,msg\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644))

	_, err := New(dir).Read()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")
}

func TestSelect(t *testing.T) {
	var entries []Entry
	for i, job := range []string{"post-interest", "update-dormancy", "post-interest", "post-interest"} {
		e := testEntry()
		e.Job = job
		e.Processed = i
		if i%2 == 1 {
			e.Outcome = OutcomeSuccess
		}
		entries = append(entries, e)
	}

	assert.Len(t, Select(entries, Query{}), 4)
	assert.Len(t, Select(entries, Query{Job: "post-interest"}), 3)
	assert.Len(t, Select(entries, Query{FailedOnly: true}), 2)

	last := Select(entries, Query{Job: "post-interest", Limit: 2})
	require.Len(t, last, 2)
	assert.Equal(t, 2, last[0].Processed)
	assert.Equal(t, 3, last[1].Processed)
}
