package speech

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// wavHeaderSize is the size of a canonical PCM WAV header; a capture no
// larger than this holds no audio.
const wavHeaderSize = 44

const (
	pollInterval = 20 * time.Millisecond
	stopGrace    = 500 * time.Millisecond
)

// SoxRecorder records from the default input device with the sox binary.
type SoxRecorder struct {
	Bin        string // sox executable, default "sox"
	SampleRate int
}

// NewSoxRecorder returns a recorder using the given sox binary.
func NewSoxRecorder(bin string) *SoxRecorder {
	if bin == "" {
		bin = "sox"
	}
	return &SoxRecorder{Bin: bin, SampleRate: 16000}
}

// Calibrate samples ambient noise and returns the RMS amplitude reported by
// the sox stat effect.
func (r *SoxRecorder) Calibrate(ctx context.Context, d time.Duration) (float64, error) {
	if d <= 0 {
		return 0, nil
	}
	cmd := exec.CommandContext(ctx, r.Bin,
		"-q", "-d", "-n",
		"trim", "0", seconds(d),
		"stat",
	)
	// stat reports on stderr.
	out, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("sox stat: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return parseRMS(string(out))
}

// Capture records one phrase. The silence effect holds recording until the
// level crosses threshold, and trim caps the phrase length. Capture fails
// with ErrWaitTimeout when no audio reaches outPath within timeout; once
// audio starts, sox gets phraseLimit (plus a short grace) to finish.
func (r *SoxRecorder) Capture(ctx context.Context, threshold float64, timeout, phraseLimit time.Duration, outPath string) error {
	cmd := exec.CommandContext(ctx, r.Bin,
		"-q", "-d",
		"-c", "1", "-r", strconv.Itoa(r.SampleRate), "-b", "16",
		outPath,
		"silence", "1", "0.05", strconv.FormatFloat(threshold*100, 'f', 2, 64)+"%",
		"trim", "0", seconds(phraseLimit),
	)
	// Interrupt lets sox finish the WAV header before exiting.
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = stopGrace

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start sox: %w", err)
	}
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	poll := time.NewTicker(pollInterval)
	defer poll.Stop()
	waitTimer := time.NewTimer(timeout)
	defer waitTimer.Stop()
	var phraseTimer <-chan time.Time

	started := false
	markStarted := func() {
		started = true
		phraseTimer = time.After(phraseLimit + stopGrace)
	}

	for {
		select {
		case runErr := <-done:
			switch {
			case ctx.Err() != nil:
				return ctx.Err()
			case hasAudio(outPath):
				return nil
			case runErr != nil:
				return fmt.Errorf("sox record: %w: %s", runErr, strings.TrimSpace(stderr.String()))
			}
			return ErrWaitTimeout
		case <-poll.C:
			if !started && hasAudio(outPath) {
				markStarted()
			}
		case <-waitTimer.C:
			if started {
				continue
			}
			if hasAudio(outPath) {
				markStarted()
				continue
			}
			stop(cmd, done)
			return ErrWaitTimeout
		case <-phraseTimer:
			stop(cmd, done)
			return nil
		}
	}
}

// stop interrupts the recorder and kills it if it ignores the signal.
func stop(cmd *exec.Cmd, done <-chan error) {
	_ = cmd.Process.Signal(os.Interrupt)
	select {
	case <-done:
	case <-time.After(stopGrace):
		_ = cmd.Process.Kill()
		<-done
	}
}

func hasAudio(path string) bool {
	size, err := fileSize(path)
	return err == nil && size > wavHeaderSize
}

// CommandPlayer plays files by running a fixed command with the file path
// appended, e.g. ffplay -nodisp -autoexit -loglevel quiet.
type CommandPlayer struct {
	Command []string
}

// NewCommandPlayer returns a player for the given command line.
func NewCommandPlayer(command []string) *CommandPlayer {
	if len(command) == 0 {
		command = []string{"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet"}
	}
	return &CommandPlayer{Command: command}
}

// Play runs the player and waits for it to exit.
func (p *CommandPlayer) Play(ctx context.Context, path string) error {
	args := append(append([]string{}, p.Command[1:]...), path)
	out, err := exec.CommandContext(ctx, p.Command[0], args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", p.Command[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}

// parseRMS extracts "RMS amplitude" from sox stat output.
func parseRMS(out string) (float64, error) {
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "RMS") || !strings.Contains(line, "amplitude") {
			continue
		}
		_, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		return strconv.ParseFloat(strings.TrimSpace(value), 64)
	}
	return 0, errors.New("sox stat: no RMS amplitude in output")
}

func fileSize(path string) (int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}
