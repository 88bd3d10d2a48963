package training

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Hyperparameters passes tuning knobs through to the model verbatim, as
// key=value pairs. Orchestration does not interpret them.
type Hyperparameters map[string]string

// Model is the contract a segmentation model fulfills. Implementations own
// their file formats; callers only hand over directories and read back
// output directories.
type Model interface {
	// Train fits a model on the dataset layout under dataDir and returns
	// where the model and its training metrics were written.
	Train(ctx context.Context, dataDir string, hp Hyperparameters) (modelDir, metricsDir string, err error)
	// Infer classifies the apply tiles under dataDir.
	Infer(ctx context.Context, dataDir, modelDir string, numClasses int) (outDir string, err error)
	// Evaluate scores the model against the validation tiles.
	Evaluate(ctx context.Context, dataDir, modelDir string, numClasses int, classNames []string) (outDir string, err error)
}

// ExternalModel runs a model as a separate process. Each operation invokes
// the configured executable with a subcommand; the process prints the
// resulting directory paths on its last output lines.
type ExternalModel struct {
	// Executable is the model program.
	Executable string
	// Args are prepended to every invocation.
	Args []string
}

// Train implements Model.
func (m *ExternalModel) Train(ctx context.Context, dataDir string, hp Hyperparameters) (string, string, error) {
	args := append([]string{}, m.Args...)
	args = append(args, "train", "--data", dataDir)
	for k, v := range hp {
		args = append(args, "--hp", k+"="+v)
	}
	lines, err := m.run(ctx, args)
	if err != nil {
		return "", "", err
	}
	if len(lines) < 2 {
		return "", "", fmt.Errorf("model train output missing result paths")
	}
	return lines[len(lines)-2], lines[len(lines)-1], nil
}

// Infer implements Model.
func (m *ExternalModel) Infer(ctx context.Context, dataDir, modelDir string, numClasses int) (string, error) {
	args := append([]string{}, m.Args...)
	args = append(args,
		"infer", "--data", dataDir, "--model", modelDir,
		"--classes", strconv.Itoa(numClasses))
	lines, err := m.run(ctx, args)
	if err != nil {
		return "", err
	}
	if len(lines) == 0 {
		return "", fmt.Errorf("model infer output missing result path")
	}
	return lines[len(lines)-1], nil
}

// Evaluate implements Model.
func (m *ExternalModel) Evaluate(ctx context.Context, dataDir, modelDir string, numClasses int, classNames []string) (string, error) {
	args := append([]string{}, m.Args...)
	args = append(args,
		"evaluate", "--data", dataDir, "--model", modelDir,
		"--classes", strconv.Itoa(numClasses))
	if len(classNames) > 0 {
		args = append(args, "--class-names", strings.Join(classNames, ","))
	}
	lines, err := m.run(ctx, args)
	if err != nil {
		return "", err
	}
	if len(lines) == 0 {
		return "", fmt.Errorf("model evaluate output missing result path")
	}
	return lines[len(lines)-1], nil
}

// run executes the model process and returns its non-empty stdout lines.
// Stderr passes through so the model's own progress stays visible.
func (m *ExternalModel) run(ctx context.Context, args []string) ([]string, error) {
	cmd := exec.CommandContext(ctx, m.Executable, args...)
	cmd.Stderr = os.Stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("model %s %s: %w", m.Executable, args[len(m.Args)], err)
	}
	var lines []string
	for _, l := range strings.Split(string(out), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines, nil
}
