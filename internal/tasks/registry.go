// Package tasks defines the trainable model catalog and runs its entries:
// sampling, optional teacher relabeling, training, evaluation, and artifact
// persistence, plus the sequential queue the CLI feeds.
package tasks

import (
	"fmt"

	"github.com/irislab/gazetrain/internal/corpus"
)

// Spec describes one trainable model. Gen-1 specs train directly on corpus
// labels; gen-2 specs name a Teacher artifact whose rescaled predictions
// replace the labels.
type Spec struct {
	Name   string
	Title  string
	Output string

	Type corpus.SampleType
	Eyes corpus.Eyes

	// Teacher is the output file name of the model whose predictions label
	// this generation. Empty for gen-1 tasks. TeacherEyes is the frame
	// predicate the teacher needs; for cross-eye distillation it is wider
	// than Eyes, and sampling uses it so every row feeds both networks.
	Teacher     string
	TeacherEyes corpus.Eyes

	// Arch builds the convmarkup text for a w by h RGB input.
	Arch   func(w, h int) string
	OutDim int

	Limit     int
	BatchSize int

	// Scalable switches from shuffled epoch passes to cyclic
	// steps-per-epoch streaming, for key sets too large to reshuffle.
	Scalable bool
}

// Generation reports 1 for label-trained specs and 2 for teacher-labeled ones.
func (s Spec) Generation() int {
	if s.Teacher == "" {
		return 1
	}
	return 2
}

func gazeArch(w, h int) string {
	return fmt.Sprintf(`
Input(w=%d, h=%d, d=3)
Conv(w=7, h=7, n=32)
ReLU
MaxPool(w=3, h=3)
Conv(w=7, h=7, n=64)
ReLU
MaxPool(w=3, h=3)
Conv(w=7, h=7, n=128)
ReLU
MaxPool(w=3, h=3)
FC(out=256)
ReLU
FC(out=2)
`, w, h)
}

func opennessArch(w, h int) string {
	return fmt.Sprintf(`
Input(w=%d, h=%d, d=3)
Conv(w=7, h=7, n=32)
ReLU
MaxPool(w=3, h=3)
Dropout(prob=0.8)
Conv(w=7, h=7, n=64)
ReLU
MaxPool(w=3, h=3)
Dropout(prob=0.8)
Conv(w=7, h=7, n=128)
ReLU
MaxPool(w=3, h=3)
Dropout(prob=0.8)
FC(out=64)
ReLU
FC(out=1)
`, w, h)
}

// distilledArch is the slimmer student used when a combined teacher labels a
// single-eye model.
func distilledArch(w, h int) string {
	return fmt.Sprintf(`
Input(w=%d, h=%d, d=3)
Conv(w=7, h=7, n=16)
ReLU
MaxPool(w=3, h=3)
Dropout(prob=0.8)
Conv(w=7, h=7, n=32)
ReLU
MaxPool(w=3, h=3)
Dropout(prob=0.8)
Conv(w=7, h=7, n=64)
ReLU
MaxPool(w=3, h=3)
Dropout(prob=0.8)
FC(out=64)
ReLU
FC(out=1)
`, w, h)
}

// scalableArch trades the wide 7x7 kernels for 3x3 ones so quarter-million
// row runs stay tractable.
func scalableArch(w, h int) string {
	return fmt.Sprintf(`
Input(w=%d, h=%d, d=3)
Conv(w=3, h=3, n=32)
ReLU
MaxPool(w=2, h=2)
Conv(w=3, h=3, n=64)
ReLU
MaxPool(w=2, h=2)
Conv(w=3, h=3, n=128)
ReLU
MaxPool(w=2, h=2)
FC(out=64)
ReLU
FC(out=1)
`, w, h)
}

var registry = []Spec{
	{
		Name:      "combined-gaze",
		Title:     "Combined gaze (pitch/yaw)",
		Output:    "combined_pitchyaw.net",
		Type:      corpus.Gaze,
		Eyes:      corpus.BothEyes,
		Arch:      gazeArch,
		OutDim:    2,
		Limit:     25000,
		BatchSize: 32,
	},
	{
		Name:      "left-gaze",
		Title:     "Left-eye gaze (pitch/yaw)",
		Output:    "left_pitchyaw.net",
		Type:      corpus.Gaze,
		Eyes:      corpus.LeftEye,
		Arch:      gazeArch,
		OutDim:    2,
		Limit:     35000,
		BatchSize: 32,
	},
	{
		Name:      "right-gaze",
		Title:     "Right-eye gaze (pitch/yaw)",
		Output:    "right_pitchyaw.net",
		Type:      corpus.Gaze,
		Eyes:      corpus.RightEye,
		Arch:      gazeArch,
		OutDim:    2,
		Limit:     35000,
		BatchSize: 32,
	},
	{
		Name:      "combined-openness",
		Title:     "Combined eye openness",
		Output:    "combined_openness.net",
		Type:      corpus.Openness,
		Eyes:      corpus.BothEyes,
		Arch:      opennessArch,
		OutDim:    1,
		Limit:     25000,
		BatchSize: 32,
	},
	{
		Name:      "left-openness",
		Title:     "Left-eye openness",
		Output:    "left_openness.net",
		Type:      corpus.Openness,
		Eyes:      corpus.LeftEye,
		Arch:      opennessArch,
		OutDim:    1,
		Limit:     35000,
		BatchSize: 32,
	},
	{
		Name:      "right-openness",
		Title:     "Right-eye openness",
		Output:    "right_openness.net",
		Type:      corpus.Openness,
		Eyes:      corpus.RightEye,
		Arch:      opennessArch,
		OutDim:    1,
		Limit:     35000,
		BatchSize: 32,
	},
	{
		Name:        "combined-openness-gen2",
		Title:       "Combined eye openness (gen 2)",
		Output:      "combined_openness_gen2.net",
		Type:        corpus.Openness,
		Eyes:        corpus.BothEyes,
		Teacher:     "combined_openness.net",
		TeacherEyes: corpus.BothEyes,
		Arch:        opennessArch,
		OutDim:      1,
		Limit:       25000,
		BatchSize:   128,
	},
	{
		Name:        "combined-openness-gen2-scalable",
		Title:       "Combined eye openness (gen 2, scalable)",
		Output:      "combined_openness_gen2_scalable.net",
		Type:        corpus.Openness,
		Eyes:        corpus.BothEyes,
		Teacher:     "combined_openness.net",
		TeacherEyes: corpus.BothEyes,
		Arch:        scalableArch,
		OutDim:      1,
		Limit:       250000,
		BatchSize:   128,
		Scalable:    true,
	},
	{
		Name:        "left-openness-gen2",
		Title:       "Left-eye openness (gen 2)",
		Output:      "left_openness_gen2.net",
		Type:        corpus.Openness,
		Eyes:        corpus.LeftEye,
		Teacher:     "left_openness.net",
		TeacherEyes: corpus.LeftEye,
		Arch:        opennessArch,
		OutDim:      1,
		Limit:       35000,
		BatchSize:   128,
	},
	{
		Name:        "right-openness-gen2",
		Title:       "Right-eye openness (gen 2)",
		Output:      "right_openness_gen2.net",
		Type:        corpus.Openness,
		Eyes:        corpus.RightEye,
		Teacher:     "right_openness.net",
		TeacherEyes: corpus.RightEye,
		Arch:        opennessArch,
		OutDim:      1,
		Limit:       35000,
		BatchSize:   128,
	},
	{
		Name:        "left-openness-distilled",
		Title:       "Left-eye openness (distilled from combined)",
		Output:      "left_openness_distilled.net",
		Type:        corpus.Openness,
		Eyes:        corpus.LeftEye,
		Teacher:     "combined_openness.net",
		TeacherEyes: corpus.BothEyes,
		Arch:        distilledArch,
		OutDim:      1,
		Limit:       35000,
		BatchSize:   128,
	},
	{
		Name:        "right-openness-distilled",
		Title:       "Right-eye openness (distilled from combined)",
		Output:      "right_openness_distilled.net",
		Type:        corpus.Openness,
		Eyes:        corpus.RightEye,
		Teacher:     "combined_openness.net",
		TeacherEyes: corpus.BothEyes,
		Arch:        distilledArch,
		OutDim:      1,
		Limit:       35000,
		BatchSize:   128,
	},
}

// All returns the full catalog in its canonical order: every gen-1 task
// before any task that can depend on it.
func All() []Spec {
	out := make([]Spec, len(registry))
	copy(out, registry)
	return out
}

// Lookup finds a spec by name.
func Lookup(name string) (Spec, bool) {
	for _, s := range registry {
		if s.Name == name {
			return s, true
		}
	}
	return Spec{}, false
}
