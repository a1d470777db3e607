package audio

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"
)

const (
	startupSettle = 250 * time.Millisecond
	stopGrace     = 1200 * time.Millisecond
)

// errEarlyExit marks a child that died before producing any media.
var errEarlyExit = errors.New("exited before capture started")

// childProcess supervises one ffmpeg-family subprocess.
type childProcess struct {
	name    string
	stderr  *bytes.Buffer
	process *os.Process
	waitErr <-chan error

	stopOnce sync.Once
	stopErr  error
}

// launch starts cmd and waits briefly so immediate failures (missing device,
// permission denied, bad input format) surface as start errors.
func launch(name string, cmd *exec.Cmd) (*childProcess, error) {
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", name, err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	select {
	case err := <-waitErr:
		detail := stringsTrimSpaceSafe(stderr.String())
		if err != nil {
			return nil, fmt.Errorf("%s %w: %v: %s", name, errEarlyExit, err, detail)
		}
		return nil, fmt.Errorf("%s %w", name, errEarlyExit)
	case <-time.After(startupSettle):
	}

	return &childProcess{
		name:    name,
		stderr:  &stderr,
		process: cmd.Process,
		waitErr: waitErr,
	}, nil
}

// stop interrupts the child, escalating to kill after a grace period.
// A non-zero exit caused by the interrupt is not an error.
func (p *childProcess) stop() error {
	return p.stopAfter(0)
}

// stopAfter gives the child up to wait to exit on its own before stopping it.
func (p *childProcess) stopAfter(wait time.Duration) error {
	p.stopOnce.Do(func() {
		if wait > 0 {
			select {
			case err, ok := <-p.waitErr:
				if ok {
					p.stopErr = normalizeStopErr(err)
				}
				return
			case <-time.After(wait):
			}
		}

		if p.process != nil {
			_ = p.process.Signal(os.Interrupt)
		}

		select {
		case err, ok := <-p.waitErr:
			if ok {
				p.stopErr = normalizeStopErr(err)
			}
		case <-time.After(stopGrace):
			if p.process != nil {
				_ = p.process.Kill()
			}
			if err, ok := <-p.waitErr; ok {
				p.stopErr = normalizeStopErr(err)
			}
		}

		if p.stopErr != nil && p.stderr.Len() > 0 {
			p.stopErr = fmt.Errorf("%s: %w: %s", p.name, p.stopErr, stringsTrimSpaceSafe(p.stderr.String()))
		}
	})
	return p.stopErr
}

func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

func stringsTrimSpaceSafe(input string) string {
	if input == "" {
		return input
	}
	return string(bytes.TrimSpace([]byte(input)))
}
