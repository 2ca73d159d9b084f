package report

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCycleLengthAndStartVertex(t *testing.T) {
	c := Cycle{Path: []int{0, 1, 2, 0}}
	assert.Equal(t, 3, c.Length())
	assert.Equal(t, 0, c.StartVertex())

	empty := Cycle{}
	assert.Equal(t, 0, empty.Length())
	assert.Equal(t, -1, empty.StartVertex())
}

func TestLogRendererNoDeadlock(t *testing.T) {
	logger, hook := test.NewNullLogger()
	entry := logrus.NewEntry(logger)
	r := NewLogRenderer(entry)

	err := r.Render(Report{Detected: false, ProcessesScanned: 3})
	require.NoError(t, err)
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, logrus.InfoLevel, hook.Entries[0].Level)
}

func TestLogRendererDefiniteDeadlock(t *testing.T) {
	logger, hook := test.NewNullLogger()
	entry := logrus.NewEntry(logger)
	r := NewLogRenderer(entry)

	err := r.Render(Report{
		Detected: true,
		Cycles: []Cycle{
			{Path: []int{0, 1, 0}, ProcessIDs: []int{1001}, ResourceIDs: []int{1}, Definite: true},
		},
		Recommendations: []string{"terminate one of the following processes: [1001]"},
	})
	require.NoError(t, err)
	require.Len(t, hook.Entries, 2)
	assert.Equal(t, logrus.WarnLevel, hook.Entries[0].Level)
}
