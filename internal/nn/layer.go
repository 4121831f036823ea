package nn

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Param is a trainable tensor and its gradient from the last backward pass
type Param struct {
	Name  string
	Value *mat.Dense
	Grad  *mat.Dense
}

func newParam(name string, r, c int) *Param {
	return &Param{Name: name, Value: mat.NewDense(r, c, nil), Grad: mat.NewDense(r, c, nil)}
}

// Layer is one stage of the network. Forward caches what Backward needs,
// so calls must alternate within a training step.
type Layer interface {
	Name() string
	Kind() string
	Forward(x *mat.Dense, training bool) *mat.Dense
	Backward(grad *mat.Dense) *mat.Dense
	Params() []*Param
	// Units is the width of the layer output
	Units() int
	// ParamCount includes non-trainable state such as moving statistics
	ParamCount() int
}

// Dense is a fully connected layer with a fused activation
type Dense struct {
	name       string
	act        Activation
	W, B       *Param
	in, out    int
	lastInput  *mat.Dense
	lastOutput *mat.Dense
}

// NewDense creates a Glorot-uniform initialized dense layer with zero bias
func NewDense(name string, in, out int, act Activation, rng *rand.Rand) *Dense {
	d := &Dense{
		name: name,
		act:  act,
		W:    newParam(name+"/kernel", in, out),
		B:    newParam(name+"/bias", 1, out),
		in:   in,
		out:  out,
	}
	limit := math.Sqrt(6 / float64(in+out))
	raw := d.W.Value.RawMatrix().Data
	for i := range raw {
		raw[i] = (rng.Float64()*2 - 1) * limit
	}
	return d
}

func (d *Dense) Name() string { return d.name }
func (d *Dense) Kind() string { return "Dense" }
func (d *Dense) Units() int   { return d.out }

// Activation returns the fused activation
func (d *Dense) Activation() Activation { return d.act }

// Weights returns the kernel, shaped inputs x units
func (d *Dense) Weights() *mat.Dense { return d.W.Value }

func (d *Dense) Params() []*Param { return []*Param{d.W, d.B} }

func (d *Dense) ParamCount() int { return d.in*d.out + d.out }

func (d *Dense) Forward(x *mat.Dense, training bool) *mat.Dense {
	r, _ := x.Dims()
	out := mat.NewDense(r, d.out, nil)
	out.Mul(x, d.W.Value)
	bias := d.B.Value.RawRowView(0)
	for i := 0; i < r; i++ {
		row := out.RawRowView(i)
		for j := range row {
			row[j] = d.act.apply(row[j] + bias[j])
		}
	}
	if training {
		d.lastInput = x
		d.lastOutput = out
	}
	return out
}

func (d *Dense) Backward(grad *mat.Dense) *mat.Dense {
	r, _ := grad.Dims()
	dz := mat.NewDense(r, d.out, nil)
	for i := 0; i < r; i++ {
		g := grad.RawRowView(i)
		a := d.lastOutput.RawRowView(i)
		row := dz.RawRowView(i)
		for j := range row {
			row[j] = g[j] * d.act.deriv(a[j])
		}
	}

	d.W.Grad.Mul(d.lastInput.T(), dz)
	db := d.B.Grad.RawRowView(0)
	for j := range db {
		db[j] = 0
	}
	for i := 0; i < r; i++ {
		row := dz.RawRowView(i)
		for j, v := range row {
			db[j] += v
		}
	}

	dx := mat.NewDense(r, d.in, nil)
	dx.Mul(dz, d.W.Value.T())
	return dx
}

// BatchNorm normalizes each unit over the batch during training and with
// moving statistics at inference
type BatchNorm struct {
	name                  string
	units                 int
	momentum, epsilon     float64
	Gamma, Beta           *Param
	MovingMean, MovingVar []float64
	xhat                  *mat.Dense
	invStd                []float64
}

// NewBatchNorm creates a batch normalization layer with gamma 1, beta 0
func NewBatchNorm(name string, units int, momentum, epsilon float64) *BatchNorm {
	bn := &BatchNorm{
		name:       name,
		units:      units,
		momentum:   momentum,
		epsilon:    epsilon,
		Gamma:      newParam(name+"/gamma", 1, units),
		Beta:       newParam(name+"/beta", 1, units),
		MovingMean: make([]float64, units),
		MovingVar:  make([]float64, units),
	}
	for j := 0; j < units; j++ {
		bn.Gamma.Value.Set(0, j, 1)
		bn.MovingVar[j] = 1
	}
	return bn
}

func (b *BatchNorm) Name() string     { return b.name }
func (b *BatchNorm) Kind() string     { return "BatchNormalization" }
func (b *BatchNorm) Units() int       { return b.units }
func (b *BatchNorm) Params() []*Param { return []*Param{b.Gamma, b.Beta} }
func (b *BatchNorm) ParamCount() int  { return 4 * b.units }

func (b *BatchNorm) Forward(x *mat.Dense, training bool) *mat.Dense {
	r, c := x.Dims()
	gamma := b.Gamma.Value.RawRowView(0)
	beta := b.Beta.Value.RawRowView(0)
	out := mat.NewDense(r, c, nil)

	if !training {
		for i := 0; i < r; i++ {
			in, o := x.RawRowView(i), out.RawRowView(i)
			for j := range o {
				o[j] = gamma[j]*(in[j]-b.MovingMean[j])/math.Sqrt(b.MovingVar[j]+b.epsilon) + beta[j]
			}
		}
		return out
	}

	mean := make([]float64, c)
	variance := make([]float64, c)
	for i := 0; i < r; i++ {
		for j, v := range x.RawRowView(i) {
			mean[j] += v
		}
	}
	for j := range mean {
		mean[j] /= float64(r)
	}
	for i := 0; i < r; i++ {
		for j, v := range x.RawRowView(i) {
			d := v - mean[j]
			variance[j] += d * d
		}
	}

	b.invStd = make([]float64, c)
	for j := range variance {
		variance[j] /= float64(r)
		b.invStd[j] = 1 / math.Sqrt(variance[j]+b.epsilon)
		b.MovingMean[j] = b.momentum*b.MovingMean[j] + (1-b.momentum)*mean[j]
		b.MovingVar[j] = b.momentum*b.MovingVar[j] + (1-b.momentum)*variance[j]
	}

	b.xhat = mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		in, xh, o := x.RawRowView(i), b.xhat.RawRowView(i), out.RawRowView(i)
		for j := range o {
			xh[j] = (in[j] - mean[j]) * b.invStd[j]
			o[j] = gamma[j]*xh[j] + beta[j]
		}
	}
	return out
}

func (b *BatchNorm) Backward(grad *mat.Dense) *mat.Dense {
	r, c := grad.Dims()
	n := float64(r)
	gamma := b.Gamma.Value.RawRowView(0)
	dgamma := b.Gamma.Grad.RawRowView(0)
	dbeta := b.Beta.Grad.RawRowView(0)
	for j := 0; j < c; j++ {
		dgamma[j], dbeta[j] = 0, 0
	}

	// column sums of dxhat and dxhat*xhat
	sumD := make([]float64, c)
	sumDX := make([]float64, c)
	for i := 0; i < r; i++ {
		g, xh := grad.RawRowView(i), b.xhat.RawRowView(i)
		for j := 0; j < c; j++ {
			dgamma[j] += g[j] * xh[j]
			dbeta[j] += g[j]
			d := g[j] * gamma[j]
			sumD[j] += d
			sumDX[j] += d * xh[j]
		}
	}

	dx := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		g, xh, o := grad.RawRowView(i), b.xhat.RawRowView(i), dx.RawRowView(i)
		for j := 0; j < c; j++ {
			d := g[j] * gamma[j]
			o[j] = b.invStd[j] / n * (n*d - sumD[j] - xh[j]*sumDX[j])
		}
	}
	return dx
}

// Dropout zeroes a random fraction of activations during training and
// rescales the rest so the expected sum is unchanged
type Dropout struct {
	name  string
	units int
	rate  float64
	rng   *rand.Rand
	mask  *mat.Dense
}

// NewDropout creates a dropout layer
func NewDropout(name string, units int, rate float64, rng *rand.Rand) *Dropout {
	return &Dropout{name: name, units: units, rate: rate, rng: rng}
}

func (d *Dropout) Name() string     { return d.name }
func (d *Dropout) Kind() string     { return "Dropout" }
func (d *Dropout) Units() int       { return d.units }
func (d *Dropout) Params() []*Param { return nil }
func (d *Dropout) ParamCount() int  { return 0 }

// Rate is the fraction of units dropped while training
func (d *Dropout) Rate() float64 { return d.rate }

func (d *Dropout) Forward(x *mat.Dense, training bool) *mat.Dense {
	if !training || d.rate == 0 {
		d.mask = nil
		return x
	}
	r, c := x.Dims()
	keep := 1 / (1 - d.rate)
	d.mask = mat.NewDense(r, c, nil)
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		in, m, o := x.RawRowView(i), d.mask.RawRowView(i), out.RawRowView(i)
		for j := range o {
			if d.rng.Float64() >= d.rate {
				m[j] = keep
				o[j] = in[j] * keep
			}
		}
	}
	return out
}

func (d *Dropout) Backward(grad *mat.Dense) *mat.Dense {
	if d.mask == nil {
		return grad
	}
	r, c := grad.Dims()
	dx := mat.NewDense(r, c, nil)
	dx.MulElem(grad, d.mask)
	return dx
}
