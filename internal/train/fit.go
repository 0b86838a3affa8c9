package train

import (
	"log"
	"math"

	"github.com/irislab/gazetrain/internal/batch"
	"github.com/pkg/errors"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet"
	"github.com/unixpickle/anynet/anyff"
	"github.com/unixpickle/anynet/anysgd"
	"github.com/unixpickle/anyvec"
)

// SchedConfig reduces the learning rate when the monitored loss stops
// improving: after Patience epochs without improvement the rate is
// multiplied by Factor, never dropping below MinRate.
type SchedConfig struct {
	Factor   float64
	Patience int
	MinRate  float64
}

// StopConfig stops training after Patience epochs without improvement of
// the monitored loss, optionally restoring the best weights seen.
// Patience < 0 disables early stopping.
type StopConfig struct {
	Patience    int
	RestoreBest bool
}

// FitConfig is the declarative training configuration. Zero fields take the
// defaults the production tasks use (250 epochs, batch 32, Adam at 1e-3,
// reduce-on-plateau 0.5/5 down to 1e-6, early stop after 15 restoring best).
type FitConfig struct {
	Epochs        int
	BatchSize     int
	StepsPerEpoch int
	Rate          float64

	// ValidationFraction carves a hash-based validation split out of the
	// samples; the plateau/early-stop logic then monitors validation loss
	// instead of training loss.
	ValidationFraction float64

	Schedule SchedConfig
	Stop     StopConfig

	Logf func(format string, args ...interface{})
}

func (c FitConfig) withDefaults() FitConfig {
	if c.Epochs == 0 {
		c.Epochs = 250
	}
	if c.BatchSize == 0 {
		c.BatchSize = 32
	}
	if c.Rate == 0 {
		c.Rate = 0.001
	}
	if c.Schedule.Factor == 0 {
		c.Schedule.Factor = 0.5
	}
	if c.Schedule.Patience == 0 {
		c.Schedule.Patience = 5
	}
	if c.Schedule.MinRate == 0 {
		c.Schedule.MinRate = 1e-6
	}
	if c.Stop.Patience == 0 {
		c.Stop = StopConfig{Patience: 15, RestoreBest: true}
	}
	if c.Logf == nil {
		c.Logf = log.Printf
	}
	return c
}

type mutableRater struct {
	rate float64
}

func (r *mutableRater) Rate(epoch float64) float64 {
	return r.rate
}

// earlyState carries the plateau and early-stop bookkeeping shared by both
// fit paths.
type earlyState struct {
	sched  SchedConfig
	stop   StopConfig
	rater  *mutableRater
	params []*anydiff.Var
	logf   func(string, ...interface{})

	best       float64
	hasBest    bool
	bestParams []anyvec.Vector
	schedWait  int
	stopWait   int
}

func newEarlyState(cfg FitConfig, rater *mutableRater, params []*anydiff.Var) *earlyState {
	return &earlyState{
		sched:  cfg.Schedule,
		stop:   cfg.Stop,
		rater:  rater,
		params: params,
		logf:   cfg.Logf,
	}
}

// observe records one epoch's monitored loss and returns true when training
// should stop.
func (s *earlyState) observe(metric float64) bool {
	if !s.hasBest || metric < s.best {
		s.best = metric
		s.hasBest = true
		s.schedWait = 0
		s.stopWait = 0
		if s.stop.RestoreBest {
			s.snapshot()
		}
		return false
	}

	s.schedWait++
	s.stopWait++
	if s.sched.Patience > 0 && s.schedWait >= s.sched.Patience {
		reduced := s.rater.rate * s.sched.Factor
		if reduced < s.sched.MinRate {
			reduced = s.sched.MinRate
		}
		if reduced < s.rater.rate {
			s.logf("reducing learning rate to %v", reduced)
			s.rater.rate = reduced
		}
		s.schedWait = 0
	}
	return s.stop.Patience > 0 && s.stopWait >= s.stop.Patience
}

func (s *earlyState) snapshot() {
	s.bestParams = make([]anyvec.Vector, len(s.params))
	for i, p := range s.params {
		s.bestParams[i] = p.Vector.Copy()
	}
}

// restore puts the best seen weights back into the network.
func (s *earlyState) restore() {
	if s.bestParams == nil {
		return
	}
	for i, p := range s.params {
		p.Vector.Set(s.bestParams[i])
	}
}

type controller struct {
	cfg           FitConfig
	tr            *anyff.Trainer
	state         *earlyState
	rater         *mutableRater
	valSamples    anysgd.SampleList
	valFetcher    anysgd.Fetcher
	stepsPerEpoch int
	maxEpochs     int

	step    int
	epoch   int
	costSum float64
	stopped bool
	err     error
	done    chan struct{}
}

// status is called by anysgd.SGD before every gradient step; the trainer's
// LastCost at that point belongs to the previous step, so epoch accounting
// lags by exactly one call.
func (c *controller) status(b anysgd.Batch) {
	if c.stopped {
		return
	}
	if c.step > 0 {
		c.costSum += numericToFloat(c.tr.LastCost)
		if c.step%c.stepsPerEpoch == 0 {
			c.endEpoch()
		}
	}
	c.step++
}

func (c *controller) endEpoch() {
	c.epoch++
	trainLoss := c.costSum / float64(c.stepsPerEpoch)
	c.costSum = 0

	metric := trainLoss
	if c.valSamples != nil {
		val, err := c.validationCost()
		if err != nil {
			c.err = err
			c.halt()
			return
		}
		metric = val
		c.cfg.Logf("epoch %d/%d: loss=%.6f val_loss=%.6f lr=%v",
			c.epoch, c.maxEpochs, trainLoss, val, c.rater.rate)
	} else {
		c.cfg.Logf("epoch %d/%d: loss=%.6f lr=%v", c.epoch, c.maxEpochs, trainLoss, c.rater.rate)
	}

	if c.state.observe(metric) {
		c.cfg.Logf("early stopping at epoch %d", c.epoch)
		c.halt()
		return
	}
	if c.epoch >= c.maxEpochs {
		c.halt()
	}
}

func (c *controller) halt() {
	c.stopped = true
	close(c.done)
}

func (c *controller) validationCost() (float64, error) {
	var sum float64
	var total int
	for i := 0; i < c.valSamples.Len(); i += c.cfg.BatchSize {
		j := i + c.cfg.BatchSize
		if j > c.valSamples.Len() {
			j = c.valSamples.Len()
		}
		b, err := c.valFetcher.Fetch(c.valSamples.Slice(i, j))
		if err != nil {
			return 0, errors.Wrapf(err, "validation batch")
		}
		cost := c.tr.TotalCost(b.(*anyff.Batch)).Output().Data().([]float32)
		sum += float64(cost[0]) * float64(j-i)
		total += j - i
	}
	return sum / float64(total), nil
}

// Fit trains the network with full epoch passes over the sample list,
// reshuffling between passes. The sample list holds keys only; images are
// materialized per batch by the fetcher.
func Fit(net anynet.Net, samples *batch.KeyList, fetcher anysgd.Fetcher, cfg FitConfig) error {
	cfg = cfg.withDefaults()
	if samples.Len() == 0 {
		return errors.New("fit: empty sample list")
	}

	tr := &anyff.Trainer{
		Net:     net,
		Cost:    anynet.MSE{},
		Params:  net.Parameters(),
		Average: true,
	}

	var trainList anysgd.SampleList = samples
	var valList anysgd.SampleList
	if cfg.ValidationFraction > 0 && samples.Len() > 1 {
		trainList, valList = anysgd.HashSplit(samples, 1-cfg.ValidationFraction)
		if valList.Len() == 0 || trainList.Len() == 0 {
			trainList, valList = samples, nil
		}
	}

	// Validation always sees unaugmented frames.
	valFetcher := fetcher
	if bf, ok := fetcher.(*batch.Fetcher); ok && bf.Augment {
		clean := *bf
		clean.Augment = false
		valFetcher = &clean
	}

	stepsPerEpoch := cfg.StepsPerEpoch
	if stepsPerEpoch <= 0 {
		stepsPerEpoch = (trainList.Len() + cfg.BatchSize - 1) / cfg.BatchSize
	}

	rater := &mutableRater{rate: cfg.Rate}
	state := newEarlyState(cfg, rater, tr.Params)
	ctl := &controller{
		cfg:           cfg,
		tr:            tr,
		state:         state,
		rater:         rater,
		valSamples:    valList,
		valFetcher:    valFetcher,
		stepsPerEpoch: stepsPerEpoch,
		maxEpochs:     cfg.Epochs,
		done:          make(chan struct{}),
	}

	sgd := &anysgd.SGD{
		Fetcher:     fetcher,
		Gradienter:  tr,
		Transformer: &anysgd.Adam{},
		Samples:     trainList,
		Rater:       rater,
		StatusFunc:  ctl.status,
		BatchSize:   cfg.BatchSize,
	}
	if err := sgd.Run(ctl.done); err != nil {
		return errors.Wrapf(err, "fit")
	}
	if ctl.err != nil {
		return ctl.err
	}
	state.restore()
	return nil
}

// FitStream trains for a fixed number of steps per epoch over a cyclic
// stream, the mode used when the key set is too large for shuffled epoch
// passes to matter. Monitors training loss.
func FitStream(net anynet.Net, st *batch.Stream, cfg FitConfig) error {
	cfg = cfg.withDefaults()
	if !st.Cyclic {
		return errors.New("fit stream: stream must be cyclic")
	}
	if st.Samples.Len() == 0 {
		return errors.New("fit stream: empty sample list")
	}

	tr := &anyff.Trainer{
		Net:     net,
		Cost:    anynet.MSE{},
		Params:  net.Parameters(),
		Average: true,
	}
	adam := &anysgd.Adam{}
	rater := &mutableRater{rate: cfg.Rate}
	state := newEarlyState(cfg, rater, tr.Params)

	stepsPerEpoch := cfg.StepsPerEpoch
	if stepsPerEpoch <= 0 {
		stepsPerEpoch = st.Batches()
	}

	st.Reset()
	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		var costSum float64
		for step := 0; step < stepsPerEpoch; step++ {
			b, err := st.Next()
			if err != nil {
				return errors.Wrapf(err, "fit stream")
			}
			grad := tr.Gradient(b)
			if g := adam.Transform(grad); g != nil {
				grad = g
			}
			scaleGradient(grad, -rater.rate)
			grad.AddToVars()
			costSum += numericToFloat(tr.LastCost)
		}
		metric := costSum / float64(stepsPerEpoch)
		cfg.Logf("epoch %d/%d: loss=%.6f lr=%v", epoch, cfg.Epochs, metric, rater.rate)
		if state.observe(metric) {
			cfg.Logf("early stopping at epoch %d", epoch)
			break
		}
	}
	state.restore()
	return nil
}

// Evaluate computes MSE and MAE of the network over a held-out key set,
// streamed in unaugmented batches.
func Evaluate(net anynet.Net, samples *batch.KeyList, fetcher anysgd.Fetcher, batchSize int) (mse, mae float64, err error) {
	if samples.Len() == 0 {
		return 0, 0, errors.New("evaluate: empty sample list")
	}
	var se, ae float64
	var n int
	for i := 0; i < samples.Len(); i += batchSize {
		j := i + batchSize
		if j > samples.Len() {
			j = samples.Len()
		}
		raw, err := fetcher.Fetch(samples.Slice(i, j))
		if err != nil {
			return 0, 0, errors.Wrapf(err, "evaluate batch")
		}
		b := raw.(*anyff.Batch)
		got := net.Apply(b.Inputs, b.Num).Output().Data().([]float32)
		want := b.Outputs.Output().Data().([]float32)
		for k := range got {
			d := float64(got[k]) - float64(want[k])
			se += d * d
			ae += math.Abs(d)
			n++
		}
	}
	return se / float64(n), ae / float64(n), nil
}

func scaleGradient(g anydiff.Grad, s float64) {
	for _, v := range g {
		g.Scale(v.Creator().MakeNumeric(s))
		return
	}
}

func numericToFloat(n anyvec.Numeric) float64 {
	switch v := n.(type) {
	case float32:
		return float64(v)
	case float64:
		return v
	default:
		return math.NaN()
	}
}
