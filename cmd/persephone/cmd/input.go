package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/tartarus-sandbox/persephone/pkg/persephone/tensor"
	"gopkg.in/yaml.v3"
)

// scoreInput is the document read by the score command. YHat is the raw
// model output, [B, H*Q] for the multi-quantile losses.
type scoreInput struct {
	Y    [][]float64 `yaml:"y"`
	YHat [][]float64 `yaml:"y_hat"`
	Mask [][]float64 `yaml:"mask"`
}

// mixtureInput is the document read by the mixture commands. Parameters
// are [B, H, K]; weights may also be [B, 1, K].
type mixtureInput struct {
	Y       [][]float64   `yaml:"y"`
	Weights [][][]float64 `yaml:"weights"`
	Lambdas [][][]float64 `yaml:"lambdas"`
	Means   [][][]float64 `yaml:"means"`
	Stds    [][][]float64 `yaml:"stds"`
	Mask    [][]float64   `yaml:"mask"`
}

// readYAML decodes path into out. A path of "-" reads stdin.
func readYAML(stdin io.Reader, path string, out any) error {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func matrix(name string, rows [][]float64) (*tensor.Dense, error) {
	d, err := tensor.FromRows(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return d, nil
}

// optionalMatrix returns nil for an absent field.
func optionalMatrix(name string, rows [][]float64) (*tensor.Dense, error) {
	if rows == nil {
		return nil, nil
	}
	return matrix(name, rows)
}

func cube(name string, c [][][]float64) (*tensor.Dense, error) {
	d, err := tensor.FromCube(c)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return d, nil
}
