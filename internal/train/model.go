// Package train builds, fits, evaluates, and persists the eye regressor
// networks. Architectures are convmarkup text; the trained artifact is an
// anynet.Net serialized to a single file, later reloadable as a relabeling
// teacher.
package train

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet"
	"github.com/unixpickle/anynet/anyconv"
	"github.com/unixpickle/anyvec/anyvec32"
	"github.com/unixpickle/serializer"
)

// MissingInputError means a file the task depends on (corpus or teacher
// model) does not exist. It is raised before any training work starts.
type MissingInputError struct {
	Path string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("missing input file: %s", e.Path)
}

// BuildNet realizes a convmarkup architecture description into a fresh,
// randomly initialized network.
func BuildNet(markup string) (anynet.Net, error) {
	layer, err := anyconv.FromMarkup(anyvec32.CurrentCreator(), markup)
	if err != nil {
		return nil, errors.Wrapf(err, "build model")
	}
	if net, ok := layer.(anynet.Net); ok {
		return net, nil
	}
	return anynet.Net{layer}, nil
}

// SaveNet persists a trained network. Artifacts are never mutated in place
// after saving; a later generation reloads them read-only.
func SaveNet(path string, net anynet.Net) error {
	if err := serializer.SaveAny(path, net); err != nil {
		return errors.Wrapf(err, "save model to %s", path)
	}
	return nil
}

// LoadNet reloads a persisted network, typically to use it as a teacher.
func LoadNet(path string) (anynet.Net, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &MissingInputError{Path: path}
	}
	var net anynet.Net
	if err := serializer.LoadAny(path, &net); err != nil {
		return nil, errors.Wrapf(err, "load model from %s", path)
	}
	return net, nil
}

// EnableDropout switches every dropout layer in the network on or off.
// Inference and relabeling always run with dropout off.
func EnableDropout(net anynet.Net, enabled bool) {
	for _, layer := range net {
		if d, ok := layer.(*anynet.Dropout); ok {
			d.Enabled = enabled
		}
	}
}

// Predict applies the network to n packed input vectors and returns the
// packed outputs.
func Predict(net anynet.Net, inputs []float32, n int) []float32 {
	in := anydiff.NewConst(anyvec32.MakeVectorData(inputs))
	return net.Apply(in, n).Output().Data().([]float32)
}
