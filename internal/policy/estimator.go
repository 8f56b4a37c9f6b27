package policy

import (
	"errors"
	"fmt"
	"math"
	rand "math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Target is one regression target for an estimator: the value the output for
// Action at State should move toward.
type Target struct {
	State  []float64
	Action int
	Value  float64
}

// TrainStep configures a single optimisation step.
type TrainStep struct {
	LearningRate float64
	MaxGradNorm  float64
}

// Estimator maps a state to one value per action.
type Estimator interface {
	Predict(state []float64) []float64
	// Train applies one gradient step over batch and returns the mean loss
	// before the step.
	Train(batch []Target, step TrainStep) (float64, error)
	// Params returns a deep copy of the estimator's parameters.
	Params() map[string]*mat.Dense
	// SetParams overwrites the parameters with copies of params.
	SetParams(params map[string]*mat.Dense) error
}

// MLP is a fully connected ReLU network trained with a Huber loss and an
// Adam optimiser with decoupled weight decay.
type MLP struct {
	sizes   []int
	weights []*mat.Dense // layer l: sizes[l+1] x sizes[l]
	biases  []*mat.Dense // layer l: sizes[l+1] x 1

	weightDecay float64
	beta1       float64
	beta2       float64
	epsilon     float64
	steps       int
	moment1     []*mat.Dense // weights then biases
	moment2     []*mat.Dense
}

var _ Estimator = (*MLP)(nil)

// NewMLP builds a network with the given layer widths. Weights use He-uniform
// initialisation drawn from rng.
func NewMLP(inputs int, hidden []int, outputs int, weightDecay float64, rng *rand.Rand) (*MLP, error) {
	if inputs <= 0 || outputs <= 0 {
		return nil, fmt.Errorf("mlp needs positive input/output sizes, got %d/%d", inputs, outputs)
	}
	sizes := append([]int{inputs}, hidden...)
	sizes = append(sizes, outputs)
	for i, s := range sizes {
		if s <= 0 {
			return nil, fmt.Errorf("layer %d width must be > 0", i)
		}
	}
	if rng == nil {
		return nil, errors.New("mlp requires a random source")
	}

	m := &MLP{
		sizes:       sizes,
		weightDecay: weightDecay,
		beta1:       0.9,
		beta2:       0.999,
		epsilon:     1e-8,
	}
	for l := 0; l+1 < len(sizes); l++ {
		in, out := sizes[l], sizes[l+1]
		limit := math.Sqrt(6 / float64(in))
		init := distuv.Uniform{Min: -limit, Max: limit, Src: rng}
		data := make([]float64, out*in)
		for i := range data {
			data[i] = init.Rand()
		}
		m.weights = append(m.weights, mat.NewDense(out, in, data))
		m.biases = append(m.biases, mat.NewDense(out, 1, nil))
	}
	m.resetMoments()
	return m, nil
}

func (m *MLP) resetMoments() {
	m.steps = 0
	m.moment1 = m.moment1[:0]
	m.moment2 = m.moment2[:0]
	for _, p := range m.parameters() {
		r, c := p.Dims()
		m.moment1 = append(m.moment1, mat.NewDense(r, c, nil))
		m.moment2 = append(m.moment2, mat.NewDense(r, c, nil))
	}
}

func (m *MLP) parameters() []*mat.Dense {
	out := make([]*mat.Dense, 0, 2*len(m.weights))
	out = append(out, m.weights...)
	return append(out, m.biases...)
}

// Predict runs a forward pass.
func (m *MLP) Predict(state []float64) []float64 {
	_, acts := m.forward(state)
	out := acts[len(acts)-1]
	return append([]float64(nil), out.RawVector().Data...)
}

// forward returns the pre-activations and activations of every layer.
// acts[0] is the input.
func (m *MLP) forward(state []float64) (pre, acts []*mat.VecDense) {
	x := mat.NewVecDense(len(state), append([]float64(nil), state...))
	acts = append(acts, x)
	last := len(m.weights) - 1
	for l, w := range m.weights {
		z := mat.NewVecDense(m.sizes[l+1], nil)
		z.MulVec(w, acts[l])
		z.AddVec(z, m.biases[l].ColView(0))
		pre = append(pre, z)
		a := mat.VecDenseCopyOf(z)
		if l != last {
			for i := 0; i < a.Len(); i++ {
				if a.AtVec(i) < 0 {
					a.SetVec(i, 0)
				}
			}
		}
		acts = append(acts, a)
	}
	return pre, acts
}

// Train applies one Huber-loss gradient step restricted to each target's
// action output. Gradients are clipped by global norm before the update.
func (m *MLP) Train(batch []Target, step TrainStep) (float64, error) {
	if len(batch) == 0 {
		return 0, errors.New("empty training batch")
	}
	if step.LearningRate <= 0 {
		return 0, fmt.Errorf("learning rate must be > 0, got %v", step.LearningRate)
	}

	gradW := make([]*mat.Dense, len(m.weights))
	gradB := make([]*mat.Dense, len(m.biases))
	for l := range m.weights {
		r, c := m.weights[l].Dims()
		gradW[l] = mat.NewDense(r, c, nil)
		gradB[l] = mat.NewDense(r, 1, nil)
	}

	n := float64(len(batch))
	loss := 0.0
	for i, t := range batch {
		if len(t.State) != m.sizes[0] {
			return 0, fmt.Errorf("target %d: state length %d, want %d", i, len(t.State), m.sizes[0])
		}
		if t.Action < 0 || t.Action >= m.sizes[len(m.sizes)-1] {
			return 0, fmt.Errorf("target %d: action %d out of range", i, t.Action)
		}
		pre, acts := m.forward(t.State)
		out := acts[len(acts)-1]
		diff := out.AtVec(t.Action) - t.Value
		loss += huber(diff)

		delta := mat.NewVecDense(out.Len(), nil)
		delta.SetVec(t.Action, huberGrad(diff)/n)
		for l := len(m.weights) - 1; l >= 0; l-- {
			var outer mat.Dense
			outer.Outer(1, delta, acts[l])
			gradW[l].Add(gradW[l], &outer)
			for j := 0; j < delta.Len(); j++ {
				gradB[l].Set(j, 0, gradB[l].At(j, 0)+delta.AtVec(j))
			}
			if l == 0 {
				break
			}
			prev := mat.NewVecDense(m.sizes[l], nil)
			prev.MulVec(m.weights[l].T(), delta)
			for j := 0; j < prev.Len(); j++ {
				if pre[l-1].AtVec(j) <= 0 {
					prev.SetVec(j, 0)
				}
			}
			delta = prev
		}
	}

	grads := append(append([]*mat.Dense{}, gradW...), gradB...)
	clipGradients(grads, step.MaxGradNorm)
	m.adamStep(grads, step.LearningRate)
	return loss / n, nil
}

func (m *MLP) adamStep(grads []*mat.Dense, lr float64) {
	m.steps++
	bias1 := 1 - math.Pow(m.beta1, float64(m.steps))
	bias2 := 1 - math.Pow(m.beta2, float64(m.steps))
	for i, p := range m.parameters() {
		g := grads[i].RawMatrix().Data
		m1 := m.moment1[i].RawMatrix().Data
		m2 := m.moment2[i].RawMatrix().Data
		w := p.RawMatrix().Data
		for j := range w {
			m1[j] = m.beta1*m1[j] + (1-m.beta1)*g[j]
			m2[j] = m.beta2*m2[j] + (1-m.beta2)*g[j]*g[j]
			update := (m1[j] / bias1) / (math.Sqrt(m2[j]/bias2) + m.epsilon)
			w[j] -= lr * (update + m.weightDecay*w[j])
		}
	}
}

// clipGradients rescales grads in place so their global L2 norm is at most
// maxNorm. A non-positive maxNorm disables clipping.
func clipGradients(grads []*mat.Dense, maxNorm float64) float64 {
	total := 0.0
	for _, g := range grads {
		n := mat.Norm(g, 2)
		total += n * n
	}
	norm := math.Sqrt(total)
	if maxNorm > 0 && norm > maxNorm {
		scale := maxNorm / (norm + 1e-6)
		for _, g := range grads {
			g.Scale(scale, g)
		}
	}
	return norm
}

// Params returns deep copies keyed w0..wN, b0..bN.
func (m *MLP) Params() map[string]*mat.Dense {
	out := make(map[string]*mat.Dense, 2*len(m.weights))
	for l := range m.weights {
		out[fmt.Sprintf("w%d", l)] = mat.DenseCopyOf(m.weights[l])
		out[fmt.Sprintf("b%d", l)] = mat.DenseCopyOf(m.biases[l])
	}
	return out
}

// SetParams copies params into the network. Shapes must match.
func (m *MLP) SetParams(params map[string]*mat.Dense) error {
	if len(params) != 2*len(m.weights) {
		return fmt.Errorf("expected %d parameter tensors, got %d", 2*len(m.weights), len(params))
	}
	for l := range m.weights {
		for _, pair := range []struct {
			name string
			dst  *mat.Dense
		}{{fmt.Sprintf("w%d", l), m.weights[l]}, {fmt.Sprintf("b%d", l), m.biases[l]}} {
			src, ok := params[pair.name]
			if !ok {
				return fmt.Errorf("missing parameter %s", pair.name)
			}
			sr, sc := src.Dims()
			dr, dc := pair.dst.Dims()
			if sr != dr || sc != dc {
				return fmt.Errorf("parameter %s: shape %dx%d, want %dx%d", pair.name, sr, sc, dr, dc)
			}
			pair.dst.Copy(src)
		}
	}
	return nil
}

// Sizes returns the layer widths, input first.
func (m *MLP) Sizes() []int {
	return append([]int(nil), m.sizes...)
}

func huber(d float64) float64 {
	if a := math.Abs(d); a < 1 {
		return 0.5 * d * d
	}
	return math.Abs(d) - 0.5
}

func huberGrad(d float64) float64 {
	switch {
	case d > 1:
		return 1
	case d < -1:
		return -1
	default:
		return d
	}
}

// encodeParams marshals each parameter with gonum's binary format.
func encodeParams(params map[string]*mat.Dense) (map[string][]byte, error) {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make(map[string][]byte, len(params))
	for _, name := range names {
		blob, err := params[name].MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", name, err)
		}
		out[name] = blob
	}
	return out, nil
}

func decodeParams(blobs map[string][]byte) (map[string]*mat.Dense, error) {
	out := make(map[string]*mat.Dense, len(blobs))
	for name, blob := range blobs {
		var d mat.Dense
		if err := d.UnmarshalBinary(blob); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", name, err)
		}
		out[name] = &d
	}
	return out, nil
}
