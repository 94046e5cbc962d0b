// Package recorder launches the camera capture processes for a trial.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/shlex"
)

// DefaultCommand records one camera. Placeholders are replaced per task:
// {camera} camera index, {ms} duration in milliseconds, {seconds} duration
// in whole seconds, {output} destination file.
const DefaultCommand = "rpicam-vid --camera {camera} -t {ms} -o {output} --nopreview"

// DefaultGrace is how long a recording may overrun before it is killed.
const DefaultGrace = 10 * time.Second

// Task is a running recording.
type Task interface {
	Wait() error
}

// Launcher starts recordings.
type Launcher interface {
	Launch(ctx context.Context, camera int, d time.Duration, dest string) (Task, error)
}

// Exec launches recordings as OS processes from a command template.
type Exec struct {
	Template []string
	Grace    time.Duration
}

var _ Launcher = &Exec{}

// NewExec tokenizes command with shell quoting rules.
func NewExec(command string, grace time.Duration) (*Exec, error) {
	args, err := shlex.Split(command)
	if err != nil {
		return nil, fmt.Errorf("parse record command: %w", err)
	}
	if len(args) == 0 {
		return nil, errors.New("empty record command")
	}
	if grace == 0 {
		grace = DefaultGrace
	}
	return &Exec{Template: args, Grace: grace}, nil
}

// Args returns the argument list for one recording.
func (e *Exec) Args(camera int, d time.Duration, dest string) []string {
	r := strings.NewReplacer(
		"{camera}", strconv.Itoa(camera),
		"{ms}", strconv.FormatInt(d.Milliseconds(), 10),
		"{seconds}", strconv.FormatInt(int64(d/time.Second), 10),
		"{output}", dest,
	)
	args := make([]string, len(e.Template))
	for i, a := range e.Template {
		args[i] = r.Replace(a)
	}
	return args
}

type process struct {
	cmd    *exec.Cmd
	camera int
	cancel context.CancelFunc
}

// Launch starts the process. It is killed if still running Grace after d.
func (e *Exec) Launch(ctx context.Context, camera int, d time.Duration, dest string) (Task, error) {
	args := e.Args(camera, d, dest)
	ctx, cancel := context.WithTimeout(ctx, d+e.Grace)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("camera %d: start %s: %w", camera, args[0], err)
	}
	return &process{cmd: cmd, camera: camera, cancel: cancel}, nil
}

func (p *process) Wait() error {
	defer p.cancel()
	if err := p.cmd.Wait(); err != nil {
		return fmt.Errorf("camera %d: %w", p.camera, err)
	}
	return nil
}

// Pair is the two recordings of one trial.
type Pair struct {
	tasks []Task
	err   error
}

// RecordPair starts camera 0 on left and camera 1 on right. If the second
// launch fails the first recording keeps running and is joined by Wait.
func RecordPair(ctx context.Context, l Launcher, d time.Duration, left, right string) *Pair {
	p := &Pair{}
	for camera, dest := range []string{left, right} {
		t, err := l.Launch(ctx, camera, d, dest)
		if err != nil {
			p.err = errors.Join(p.err, err)
			continue
		}
		p.tasks = append(p.tasks, t)
	}
	return p
}

// Wait blocks until every started recording has exited. Each one is
// waited on separately, and all failures are returned together.
func (p *Pair) Wait() error {
	errs := make([]error, len(p.tasks))
	var wg sync.WaitGroup
	for i, t := range p.tasks {
		wg.Add(1)
		go func(i int, t Task) {
			defer wg.Done()
			errs[i] = t.Wait()
		}(i, t)
	}
	wg.Wait()
	return errors.Join(append([]error{p.err}, errs...)...)
}
