package gmwm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestHuberConstant(t *testing.T) {
	for _, eff := range []float64{0.3, 0.6, 0.95} {
		c, err := HuberConstant(eff)
		require.NoError(t, err)
		assert.InDelta(t, eff, huberEfficiency(c), 1e-9)
	}
	c, err := HuberConstant(0.6)
	require.NoError(t, err)
	assert.InDelta(t, 1.2245, c, 1e-3)

	c, err = HuberConstant(1)
	require.NoError(t, err)
	assert.True(t, math.IsInf(c, 1))

	for _, bad := range []float64{0, -0.1, 1.5, math.NaN()} {
		_, err := HuberConstant(bad)
		assert.Error(t, err, "eff=%v", bad)
	}
}

func TestHuberEfficiency_Monotone(t *testing.T) {
	prev := 0.0
	for c := 0.05; c < 4; c += 0.05 {
		e := huberEfficiency(c)
		assert.Greater(t, e, prev, "c=%v", c)
		assert.LessOrEqual(t, e, 1.0+1e-12)
		prev = e
	}
}

func TestRobustLoss_Weights(t *testing.T) {
	v := mat.NewSymDense(3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	loss, err := newRobustLoss(v, v, 0.6, 0, 0)
	require.NoError(t, err)
	c := loss.c

	w := loss.weights([]float64{0, 0.5 * c, 4 * c})
	assert.Equal(t, 1.0, w[0])
	assert.Equal(t, 1.0, w[1])
	// rho(4c) = 8c^2 - c^2 = 7c^2, so w^2 (4c)^2 = 7c^2
	assert.InDelta(t, math.Sqrt(7.0)/4, w[2], 1e-12)

	// plain quadratic inside the threshold
	r := []float64{0.1, -0.2, 0.3}
	assert.InDelta(t, 0.01+0.04+0.09, loss.value(r), 1e-12)
}

func TestRobustLoss_ClippingBoundsContribution(t *testing.T) {
	v := mat.NewSymDense(1, []float64{1})
	loss, err := newRobustLoss(v, v, 0.6, 0, 3)
	require.NoError(t, err)

	capped := huberRho(3, loss.c)
	assert.InDelta(t, capped, loss.value([]float64{10}), 1e-12)
	assert.InDelta(t, capped, loss.value([]float64{-1000}), 1e-9)
}

func TestRobustLoss_ExpectDiffScalesResiduals(t *testing.T) {
	v := mat.NewSymDense(1, []float64{1})
	loss, err := newRobustLoss(v, v, 0.6, 10, 0)
	require.NoError(t, err)

	// z = 5 / 10 is inside the threshold
	w := loss.weights([]float64{5})
	assert.Equal(t, 1.0, w[0])
}

func TestRobustLoss_EffectiveOmega(t *testing.T) {
	v := mat.NewSymDense(2, []float64{1, 0, 0, 1})
	omega := mat.NewSymDense(2, []float64{2, 0.5, 0.5, 2})
	loss, err := newRobustLoss(v, omega, 0.6, 0, 0)
	require.NoError(t, err)

	r := []float64{0, 10}
	w := loss.weights(r)
	eff := loss.effectiveOmega(r)
	assert.InDelta(t, 2.0, eff.At(0, 0), 1e-12)
	assert.InDelta(t, 0.5*w[1], eff.At(0, 1), 1e-12)
	assert.InDelta(t, 2*w[1]*w[1], eff.At(1, 1), 1e-12)
	assert.InDelta(t, loss.value(r), quadForm(r, eff), 1e-9)
}

func TestInvertV(t *testing.T) {
	v := mat.NewSymDense(2, []float64{4, 1, 1, 9})
	inv, err := invertV("test", v)
	require.NoError(t, err)

	var prod mat.Dense
	prod.Mul(v, inv)
	assert.True(t, mat.EqualApprox(&prod, mat.NewDiagDense(2, []float64{1, 1}), 1e-12))

	// badly scaled but well conditioned after normalisation
	v = mat.NewSymDense(2, []float64{1e-20, 0, 0, 1e10})
	_, err = invertV("test", v)
	assert.NoError(t, err)

	v = mat.NewSymDense(2, []float64{1, 1 - 1e-15, 1 - 1e-15, 1})
	_, err = invertV("test", v)
	assert.Error(t, err)

	v = mat.NewSymDense(2, []float64{0, 0, 0, 1})
	_, err = invertV("test", v)
	assert.Error(t, err)
}

func TestMaxRelChange(t *testing.T) {
	assert.Equal(t, 0.0, maxRelChange([]float64{1, 2}, []float64{1, 2}))
	assert.InDelta(t, 0.5, maxRelChange([]float64{1, 0}, []float64{2, 0.1}), 1e-12)
}
