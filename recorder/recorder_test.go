package recorder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExec_Args(t *testing.T) {
	e, err := NewExec(DefaultCommand, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultGrace, e.Grace)

	assert.Equal(t,
		[]string{"rpicam-vid", "--camera", "1", "-t", "9000", "-o", "/data/a b.mp4", "--nopreview"},
		e.Args(1, 9*time.Second, "/data/a b.mp4"),
	)

	_, err = NewExec("", 0)
	assert.Error(t, err)
	_, err = NewExec(`rpicam-vid "unterminated`, 0)
	assert.Error(t, err)
}

func TestExec_Launch(t *testing.T) {
	dir := t.TempDir()
	e, err := NewExec(`sh -c 'echo {camera} {seconds} > "$0"' {output}`, time.Second)
	require.NoError(t, err)

	left := filepath.Join(dir, "left.txt")
	right := filepath.Join(dir, "right.txt")
	p := RecordPair(context.Background(), e, 2*time.Second, left, right)
	require.NoError(t, p.Wait())

	data, err := os.ReadFile(left)
	require.NoError(t, err)
	assert.Equal(t, "0 2\n", string(data))
	data, err = os.ReadFile(right)
	require.NoError(t, err)
	assert.Equal(t, "1 2\n", string(data))
}

func TestExec_KilledAfterGrace(t *testing.T) {
	e, err := NewExec("sleep 10", 10*time.Millisecond)
	require.NoError(t, err)

	start := time.Now()
	task, err := e.Launch(context.Background(), 0, 10*time.Millisecond, "")
	require.NoError(t, err)
	assert.Error(t, task.Wait())
	assert.Less(t, time.Since(start), 5*time.Second)
}

type fakeTask struct {
	delay time.Duration
	err   error
}

func (f fakeTask) Wait() error {
	time.Sleep(f.delay)
	return f.err
}

type fakeLauncher struct {
	tasks []Task
	errs  []error
}

func (f *fakeLauncher) Launch(ctx context.Context, camera int, d time.Duration, dest string) (Task, error) {
	if f.errs[camera] != nil {
		return nil, f.errs[camera]
	}
	return f.tasks[camera], nil
}

func TestRecordPair_JoinsBoth(t *testing.T) {
	boom := errors.New("camera 0 crashed")
	l := &fakeLauncher{
		tasks: []Task{fakeTask{err: boom}, fakeTask{delay: 20 * time.Millisecond}},
		errs:  []error{nil, nil},
	}
	err := RecordPair(context.Background(), l, time.Second, "a", "b").Wait()
	assert.ErrorIs(t, err, boom)
}

func TestRecordPair_LaunchFailure(t *testing.T) {
	noCam := errors.New("no camera 1")
	l := &fakeLauncher{
		tasks: []Task{fakeTask{}, nil},
		errs:  []error{nil, noCam},
	}
	err := RecordPair(context.Background(), l, time.Second, "a", "b").Wait()
	assert.ErrorIs(t, err, noCam)
}

func TestLayout(t *testing.T) {
	base := t.TempDir()
	l := DatedLayout(base, time.Date(2025, time.March, 7, 10, 0, 0, 0, time.UTC))
	assert.Equal(t, filepath.Join(base, "03072025"), l.Root)

	left, right, err := l.PairPaths(0, 4, 1)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(l.Root, "odor_1", "locust_3", "locust_3_trial_5.mp4"), left)
	assert.Equal(t, filepath.Join(l.Root, "odor_1", "locust_4", "locust_4_trial_5.mp4"), right)
	assert.DirExists(t, filepath.Dir(left))
	assert.DirExists(t, filepath.Dir(right))
}
