package model

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/openfluke/loom/nn"

	"github.com/jamesainslie/darkscan/batch"
)

// NativeConfig sizes a Native classifier.
type NativeConfig struct {
	// Rows is the number of token buckets fed to the first layer. Token ids
	// are folded into the buckets with id % Rows.
	Rows   int    `yaml:"rows"`
	Dim    int    `yaml:"dim"`
	Hidden int    `yaml:"hidden"`
	Seed   uint64 `yaml:"-"`
}

// DefaultNativeConfig returns the sizes used when none are configured.
func DefaultNativeConfig() NativeConfig {
	return NativeConfig{Rows: 32768, Dim: 64, Hidden: 32, Seed: 42}
}

func (c NativeConfig) validate() error {
	if c.Rows <= 0 || c.Dim <= 0 || c.Hidden <= 0 {
		return fmt.Errorf("%w: sizes must be positive (rows=%d dim=%d hidden=%d)",
			ErrInvalidModel, c.Rows, c.Dim, c.Hidden)
	}
	return nil
}

// Dense layers of the network, in order.
const (
	layerEmbedding = iota
	layerHidden
	layerClassifier
	numLayers
)

var layerNames = [numLayers]string{"embedding", "hidden", "classifier"}

// shape returns the input and output width of layer i.
func (c NativeConfig) shape(i int) (in, out int) {
	switch i {
	case layerEmbedding:
		return c.Rows, c.Dim
	case layerHidden:
		return c.Dim, c.Hidden
	default:
		return c.Hidden, NumLabels
	}
}

// Native is a bag-of-tokens classifier on a loom dense network:
//
//	x = token bucket frequencies of the unmasked ids
//	e = tanh(E x + c)
//	h = tanh(W1 e + b1)
//	logits = leaky_relu(W2 h + b2)
//
// The first layer is an embedding table applied to the mean-pooled one-hot
// tokens. Forward and backward passes and gradient application are done by
// loom; Native builds the inputs and the loss gradient.
//
// loom keeps activations inside the network, so calls are serialized with a
// mutex.
type Native struct {
	cfg NativeConfig

	mu  sync.Mutex
	net *nn.Network
}

// NewNative returns a randomly initialized classifier. Initialization is
// deterministic for a given cfg.Seed.
func NewNative(cfg NativeConfig) (*Native, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	n := newNative(cfg)
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x5851f42d4c957f2d))
	for i := range numLayers {
		l := n.net.GetLayer(0, 0, i)
		in, out := cfg.shape(i)
		if i == layerEmbedding {
			for j := range l.Kernel {
				l.Kernel[j] = float32(rng.NormFloat64() * 0.1)
			}
		} else {
			xavier(rng, l.Kernel, in, out)
		}
		clear(l.Bias)
	}
	// Logits start in the linear part of the leaky ReLU.
	cls := n.net.GetLayer(0, 0, layerClassifier)
	for j := range cls.Bias {
		cls.Bias[j] = 1
	}
	return n, nil
}

func newNative(cfg NativeConfig) *Native {
	net := nn.NewNetwork(cfg.Rows, 1, 1, numLayers)
	net.BatchSize = 1
	net.SetLayer(0, 0, layerEmbedding, nn.InitDenseLayer(cfg.Rows, cfg.Dim, nn.ActivationTanh))
	net.SetLayer(0, 0, layerHidden, nn.InitDenseLayer(cfg.Dim, cfg.Hidden, nn.ActivationTanh))
	net.SetLayer(0, 0, layerClassifier, nn.InitDenseLayer(cfg.Hidden, NumLabels, nn.ActivationLeakyReLU))
	return &Native{cfg: cfg, net: net}
}

func xavier(rng *rand.Rand, w []float32, fanIn, fanOut int) {
	limit := math.Sqrt(6 / float64(fanIn+fanOut))
	for i := range w {
		w[i] = float32((rng.Float64()*2 - 1) * limit)
	}
}

// Config returns the classifier sizes.
func (n *Native) Config() NativeConfig { return n.cfg }

// Device reports "cpu".
func (n *Native) Device() string { return "cpu" }

// Close is a no-op.
func (n *Native) Close() error { return nil }

// tensorNames lists the weight tensors in file order.
func tensorNames() []string {
	names := make([]string, 0, 2*numLayers)
	for _, name := range layerNames {
		names = append(names, name+".kernel", name+".bias")
	}
	return names
}

type tensor struct {
	name string
	data []float32
}

// tensors returns the live kernel and bias slices of every layer.
func (n *Native) tensors() []tensor {
	out := make([]tensor, 0, 2*numLayers)
	for i, name := range layerNames {
		l := n.net.GetLayer(0, 0, i)
		out = append(out,
			tensor{name + ".kernel", l.Kernel},
			tensor{name + ".bias", l.Bias})
	}
	return out
}

// Snapshot implements Trainable.
func (n *Native) Snapshot() Snapshot {
	n.mu.Lock()
	defer n.mu.Unlock()

	s := make(Snapshot, 2*numLayers)
	for _, t := range n.tensors() {
		s[t.name] = append([]float32(nil), t.data...)
	}
	return s
}

// Restore implements Trainable.
func (n *Native) Restore(s Snapshot) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	live := n.tensors()
	for _, t := range live {
		data, ok := s[t.name]
		if !ok || len(data) != len(t.data) {
			return fmt.Errorf("%w: snapshot has no %d-value tensor %q", ErrInvalidModel, len(t.data), t.name)
		}
	}
	for _, t := range live {
		copy(t.data, s[t.name])
	}
	return nil
}

// features returns the bucket frequencies of the unmasked ids.
func (n *Native) features(ids, mask []int64) []float32 {
	rows := n.cfg.Rows
	x := make([]float32, rows)
	count := 0
	for j, id := range ids {
		if mask[j] == 0 {
			continue
		}
		r := int(id % int64(rows))
		if r < 0 {
			r += rows
		}
		x[r]++
		count++
	}
	if count > 0 {
		inv := 1 / float32(count)
		for i, v := range x {
			if v != 0 {
				x[i] = v * inv
			}
		}
	}
	return x
}

func (n *Native) forward(x []float32) ([NumLabels]float64, error) {
	var logits [NumLabels]float64
	out, _ := n.net.ForwardCPU(x)
	if len(out) != NumLabels {
		return logits, fmt.Errorf("%w: network returned %d outputs, want %d", ErrInvalidModel, len(out), NumLabels)
	}
	for c, v := range out {
		logits[c] = float64(v)
	}
	return logits, nil
}

// Logits scores every row of b.
func (n *Native) Logits(ctx context.Context, b *batch.Batch) ([][NumLabels]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([][NumLabels]float64, b.Len())
	for i := range out {
		logits, err := n.forward(n.features(b.TokenIDs[i], b.AttentionMask[i]))
		if err != nil {
			return nil, err
		}
		out[i] = logits
	}
	return out, nil
}

// TrainBatch implements Trainable. Gradients are clipped over the whole
// batch, then applied one row at a time.
func (n *Native) TrainBatch(b *batch.Batch, classWeights [NumLabels]float64, step Step) (float64, error) {
	if len(b.Labels) != b.Len() {
		return 0, fmt.Errorf("batch has %d labels for %d rows", len(b.Labels), b.Len())
	}
	for i, y := range b.Labels {
		if y < 0 || y >= NumLabels {
			return 0, fmt.Errorf("row %d: label %d out of range", i, y)
		}
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	inputs := make([][]float32, b.Len())
	logits := make([][NumLabels]float64, b.Len())
	for i := range inputs {
		inputs[i] = n.features(b.TokenIDs[i], b.AttentionMask[i])
		var err error
		if logits[i], err = n.forward(inputs[i]); err != nil {
			return 0, err
		}
	}

	loss, grad := WeightedCrossEntropy(logits, b.Labels, classWeights)
	ClipNorm(grad, step.ClipNorm)
	n.decay(step.LearningRate * step.WeightDecay)

	lr := float32(step.LearningRate)
	for i, x := range inputs {
		if _, err := n.forward(x); err != nil {
			return 0, err
		}
		g := make([]float32, NumLabels)
		for c, v := range grad[i] {
			g[c] = float32(v)
		}
		n.net.BackwardCPU(g)
		n.net.ApplyGradients(lr)
	}
	return loss, nil
}

// decay shrinks the kernels by a factor of 1-rate. Biases are not decayed.
func (n *Native) decay(rate float64) {
	if rate <= 0 {
		return
	}
	f := float32(1 - rate)
	for i := range numLayers {
		k := n.net.GetLayer(0, 0, i).Kernel
		for j := range k {
			k[j] *= f
		}
	}
}
