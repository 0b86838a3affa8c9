package tasks

import (
	"log"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/irislab/gazetrain/internal/batch"
	"github.com/irislab/gazetrain/internal/corpus"
	"github.com/irislab/gazetrain/internal/relabel"
	"github.com/irislab/gazetrain/internal/train"
	"github.com/pkg/errors"
	"github.com/unixpickle/anynet/anysgd"
)

// Run executes one task end to end: sample keys, optionally relabel with the
// teacher, train, evaluate, and save the artifact. Missing inputs (corpus or
// teacher model) fail before any training work starts.
func Run(spec Spec, cfg Config) error {
	if cfg.Logf == nil {
		cfg.Logf = log.Printf
	}
	if _, err := os.Stat(cfg.DBPath); err != nil {
		return &train.MissingInputError{Path: cfg.DBPath}
	}
	teacherPath := ""
	if spec.Teacher != "" {
		teacherPath = filepath.Join(cfg.OutputDir, spec.Teacher)
		if _, err := os.Stat(teacherPath); err != nil {
			return &train.MissingInputError{Path: teacherPath}
		}
	}

	store, err := corpus.NewStore(cfg.DBPath)
	if err != nil {
		return err
	}

	// Gen-2 rows must satisfy the teacher's frame predicate, which for
	// cross-eye distillation is wider than the student's.
	sampleEyes := spec.Eyes
	if spec.Teacher != "" {
		sampleEyes = spec.TeacherEyes
	}
	keys, labels, err := store.SampleKeys(spec.Type, sampleEyes, spec.Limit)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return errors.Errorf("task %s: no eligible rows in corpus", spec.Name)
	}
	cfg.Logf("task %s: sampled %s rows", spec.Name, humanize.Comma(int64(len(keys))))
	samples := batch.NewKeyList(keys, labels)

	if spec.Teacher != "" {
		teacher, err := train.LoadNet(teacherPath)
		if err != nil {
			return err
		}
		train.EnableDropout(teacher, false)
		teacherStream := &batch.Stream{
			Samples: samples,
			Fetcher: &batch.Fetcher{
				Store:     store,
				Eyes:      spec.TeacherEyes,
				ImageSize: cfg.ImageSize,
			},
			BatchSize: spec.BatchSize,
		}
		samples, err = relabel.Relabel(teacher, teacherStream, relabel.Config{
			LowPct:  cfg.RescaleLow,
			HighPct: cfg.RescaleHigh,
			Ceiling: cfg.RescaleCeiling,
		})
		if err != nil {
			return errors.Wrapf(err, "task %s", spec.Name)
		}
		cfg.Logf("task %s: relabeled %s rows with %s",
			spec.Name, humanize.Comma(int64(samples.Len())), spec.Teacher)
	}

	width := cfg.ImageSize
	if spec.Eyes == corpus.BothEyes {
		width *= 2
	}
	net, err := train.BuildNet(spec.Arch(width, cfg.ImageSize))
	if err != nil {
		return errors.Wrapf(err, "task %s", spec.Name)
	}

	fetcher := &batch.Fetcher{
		Store:     store,
		Eyes:      spec.Eyes,
		ImageSize: cfg.ImageSize,
		Augment:   true,
		MaxOffset: cfg.MaxOffset,
	}
	fitCfg := train.FitConfig{
		Epochs:    cfg.Epochs,
		BatchSize: spec.BatchSize,
		Logf:      cfg.Logf,
	}

	switch {
	case spec.Scalable:
		st := &batch.Stream{
			Samples:   samples,
			Fetcher:   fetcher,
			BatchSize: spec.BatchSize,
			Cyclic:    true,
		}
		fitCfg.StepsPerEpoch = st.Batches()
		if err := train.FitStream(net, st, fitCfg); err != nil {
			return errors.Wrapf(err, "task %s", spec.Name)
		}

	case spec.Generation() == 1:
		// Hold out 20% of the keys for a post-training report; the fit
		// itself carves its own validation split out of the rest.
		trainPart, holdout := anysgd.HashSplit(samples, 0.8)
		fitCfg.ValidationFraction = 0.1
		if err := train.Fit(net, trainPart.(*batch.KeyList), fetcher, fitCfg); err != nil {
			return errors.Wrapf(err, "task %s", spec.Name)
		}
		if holdout.Len() > 0 {
			clean := *fetcher
			clean.Augment = false
			mse, mae, err := train.Evaluate(net, holdout.(*batch.KeyList), &clean, spec.BatchSize)
			if err != nil {
				return errors.Wrapf(err, "task %s", spec.Name)
			}
			cfg.Logf("task %s: holdout mse=%.6f mae=%.6f over %s rows",
				spec.Name, mse, mae, humanize.Comma(int64(holdout.Len())))
		}

	default:
		fitCfg.ValidationFraction = 0.1
		if err := train.Fit(net, samples, fetcher, fitCfg); err != nil {
			return errors.Wrapf(err, "task %s", spec.Name)
		}
	}

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return errors.Wrapf(err, "task %s", spec.Name)
	}
	outPath := filepath.Join(cfg.OutputDir, spec.Output)
	if err := train.SaveNet(outPath, net); err != nil {
		return errors.Wrapf(err, "task %s", spec.Name)
	}
	cfg.Logf("task %s: saved %s", spec.Name, outPath)
	return nil
}
