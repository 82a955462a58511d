package cli

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchSessionReuploadsOnlyOnResumeChange(t *testing.T) {
	c, fake, out := newTestClient(t)
	resume := writeFile(t, "resume.txt", resumeText)
	desc := writeFile(t, "job.txt", "Python and Docker")

	ws, err := newWatchSession(c, resume, analyzeOptions{DescriptionFile: desc}, textOutput())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, ws.run(ctx, nil))
	assert.Equal(t, 1, fake.Calls("/upload"))
	assert.Equal(t, 1, fake.Calls("/analyze"))
	assert.Contains(t, out.String(), "Excellent Match")

	require.NoError(t, os.WriteFile(desc, []byte("Kubernetes"), 0600))
	require.NoError(t, ws.run(ctx, []string{desc}))
	assert.Equal(t, 1, fake.Calls("/upload"))
	assert.Equal(t, 2, fake.Calls("/analyze"))
	assert.Contains(t, out.String(), "Needs Improvement")

	require.NoError(t, os.WriteFile(resume, []byte("Kubernetes operator"), 0600))
	require.NoError(t, ws.run(ctx, []string{ws.resume}))
	assert.Equal(t, 2, fake.Calls("/upload"))
	assert.Equal(t, 3, fake.Calls("/analyze"))
	assert.Equal(t, []string{"Kubernetes"}, ws.st.Skills)
}

func TestWatchSessionKeepsStateOnFailure(t *testing.T) {
	c, fake, _ := newTestClient(t)
	resume := writeFile(t, "resume.txt", resumeText)
	desc := writeFile(t, "job.txt", "Python")

	ws, err := newWatchSession(c, resume, analyzeOptions{DescriptionFile: desc}, textOutput())
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, ws.run(ctx, nil))

	require.NoError(t, os.WriteFile(desc, []byte("  "), 0600))
	require.Error(t, ws.run(ctx, []string{desc}))
	assert.Equal(t, 1, fake.Calls("/analyze"))

	require.NoError(t, os.WriteFile(resume, []byte(""), 0600))
	require.Error(t, ws.run(ctx, []string{ws.resume}))
	assert.Equal(t, 1, fake.Calls("/upload"))
	assert.True(t, ws.st.Uploaded)
	assert.Equal(t, "resume.txt", ws.st.Filename)
}
