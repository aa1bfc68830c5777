// Package checkpoint finds training checkpoints on disk and checks that a
// checkpoint was trained with the active symbol table.
package checkpoint

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// ErrNoCheckpoint is returned when a directory holds no complete
// model/optimizer pair.
var ErrNoCheckpoint = errors.New("no checkpoint found")

// Step is one saved training step. Optimizer is empty when only the model
// weights were saved.
type Step struct {
	Number    int64  `json:"step"`
	Model     string `json:"model"`
	Optimizer string `json:"optimizer,omitempty"`
}

// Complete reports whether training can resume from s.
func (s Step) Complete() bool {
	return s.Model != "" && s.Optimizer != ""
}

var extensions = map[string]bool{
	".pt":          true,
	".pth":         true,
	".ckpt":        true,
	".safetensors": true,
}

// Scan lists the checkpoint steps in dir in ascending order. It recognises
// checkpoint_step_N and optimizer_step_N files as well as the shorter
// checkpoint_N form. Interrupt and best snapshots are ignored since they
// carry no step number to resume from.
func Scan(dir string) ([]Step, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint dir: %w", err)
	}

	steps := make(map[int64]*Step)

	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		name := e.Name()
		ext := filepath.Ext(name)
		if !extensions[ext] {
			continue
		}

		if strings.Contains(name, "interrupt") || strings.Contains(name, "best") {
			slog.Debug("skipping checkpoint without step", "file", name)
			continue
		}

		n, ok := stepNumber(strings.TrimSuffix(name, ext))
		if !ok {
			slog.Debug("skipping unrecognized checkpoint file", "file", name)
			continue
		}

		st := steps[n]
		if st == nil {
			st = &Step{Number: n}
			steps[n] = st
		}

		path := filepath.Join(dir, name)

		switch {
		case strings.HasPrefix(name, "checkpoint"):
			st.Model = preferSafetensors(st.Model, path)
		case strings.HasPrefix(name, "optimizer"):
			st.Optimizer = preferSafetensors(st.Optimizer, path)
		default:
			slog.Debug("skipping unrecognized checkpoint file", "file", name)
		}
	}

	out := make([]Step, 0, len(steps))
	for _, st := range steps {
		if st.Model == "" && st.Optimizer == "" {
			continue
		}

		out = append(out, *st)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })

	return out, nil
}

// Latest returns the highest complete step in dir.
func Latest(dir string) (Step, error) {
	steps, err := Scan(dir)
	if err != nil {
		return Step{}, err
	}

	for i := len(steps) - 1; i >= 0; i-- {
		if steps[i].Complete() {
			return steps[i], nil
		}
	}

	return Step{}, fmt.Errorf("%w in %s", ErrNoCheckpoint, dir)
}

// Find returns the complete step numbered n.
func Find(dir string, n int64) (Step, error) {
	steps, err := Scan(dir)
	if err != nil {
		return Step{}, err
	}

	var available []string

	for _, st := range steps {
		if !st.Complete() {
			continue
		}

		if st.Number == n {
			return st, nil
		}

		available = append(available, strconv.FormatInt(st.Number, 10))
	}

	if len(available) == 0 {
		return Step{}, fmt.Errorf("%w in %s", ErrNoCheckpoint, dir)
	}

	return Step{}, fmt.Errorf("%w for step %d (available: %s)", ErrNoCheckpoint, n, strings.Join(available, ", "))
}

// ResumeEpoch converts a step number into the epoch training continues at.
// It returns 0 when stepsPerEpoch is unknown.
func ResumeEpoch(step, stepsPerEpoch int64) int64 {
	if stepsPerEpoch <= 0 {
		return 0
	}

	return step/stepsPerEpoch + 1
}

// stepNumber extracts N from "<kind>_step_N" or "<kind>_N".
func stepNumber(base string) (int64, bool) {
	var num string

	if i := strings.LastIndex(base, "_step_"); i >= 0 {
		num = base[i+len("_step_"):]
	} else if i := strings.LastIndex(base, "_"); i >= 0 {
		num = base[i+1:]
	} else {
		return 0, false
	}

	if num == "" || strings.TrimLeft(num, "0123456789") != "" {
		return 0, false
	}

	n, err := strconv.ParseInt(num, 10, 64)
	if err != nil {
		return 0, false
	}

	return n, true
}

func preferSafetensors(current, candidate string) string {
	if current == "" || filepath.Ext(candidate) == ".safetensors" {
		return candidate
	}

	return current
}
