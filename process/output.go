package process

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"golang.org/x/sync/errgroup"
)

// Output is the result of a process run with CaptureOutput.
type Output struct {
	Status ExitStatus
	Stdout []byte
	Stderr []byte
}

// Filter is called with each chunk read from a captured pipe, as it
// arrives. Chunks it rejects are dropped from the Output. An error stops
// collection for that pipe; the rest of the pipe is drained and discarded.
type Filter func(chunk []byte) (keep bool, err error)

const readChunkSize = 32 * 1024

type outputCapture struct {
	stdoutR, stdoutW *os.File
	stderrR, stderrW *os.File

	stdout, stderr Buffer
	group          errgroup.Group
}

// newOutputCapture points the command's stdout and stderr at fresh pipes.
func newOutputCapture(cmd *exec.Cmd) (*outputCapture, error) {
	o := &outputCapture{}

	var err error
	if o.stdoutR, o.stdoutW, err = os.Pipe(); err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	if o.stderrR, o.stderrW, err = os.Pipe(); err != nil {
		o.stdoutR.Close() //nolint:errcheck // best effort cleanup
		o.stdoutW.Close() //nolint:errcheck // best effort cleanup
		return nil, fmt.Errorf("creating stderr pipe: %w", err)
	}

	cmd.Stdout = o.stdoutW
	cmd.Stderr = o.stderrW
	return o, nil
}

// start begins reading. The child holds its own copies of the write ends,
// so ours are closed to let the readers see EOF when it exits.
func (o *outputCapture) start(stdoutFilter, stderrFilter Filter) {
	o.stdoutW.Close() //nolint:errcheck // the child has its own copy
	o.stderrW.Close() //nolint:errcheck // the child has its own copy

	o.group.Go(func() error {
		return readFiltered(&o.stdout, o.stdoutR, stdoutFilter)
	})
	o.group.Go(func() error {
		return readFiltered(&o.stderr, o.stderrR, stderrFilter)
	})
}

// abort releases the pipes of a command that failed to start.
func (o *outputCapture) abort() {
	for _, f := range []*os.File{o.stdoutR, o.stdoutW, o.stderrR, o.stderrW} {
		f.Close() //nolint:errcheck // best effort cleanup
	}
}

func (o *outputCapture) wait() error {
	return o.group.Wait()
}

func readFiltered(dst io.Writer, src io.ReadCloser, filter Filter) error {
	defer src.Close() //nolint:errcheck // read side, nothing to flush

	buf := make([]byte, readChunkSize)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			keep := true
			if filter != nil {
				var ferr error
				keep, ferr = filter(buf[:n])
				if ferr != nil {
					// Keep the pipe from filling up and blocking the child.
					_, _ = io.Copy(io.Discard, src)
					return fmt.Errorf("filtering output: %w", ferr)
				}
			}
			if keep {
				dst.Write(buf[:n]) //nolint:errcheck // Buffer.Write never fails
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading output: %w", err)
		}
	}
}
