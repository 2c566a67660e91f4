package process

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	gmwmErrors "github.com/ezoic/gmwm/pkg/errors"
)

const epsilon = 1e-12

func dyadicScales(j int) []float64 {
	s := make([]float64, j)
	for i := range s {
		s[i] = math.Ldexp(1, i+1)
	}
	return s
}

func TestWaveletVariance_ClosedForms(t *testing.T) {
	scales := dyadicScales(6)
	tests := []struct {
		name  string
		kind  Kind
		theta []float64
		want  func(tau float64) float64
	}{
		{"white noise", WN, []float64{2}, func(tau float64) float64 { return 2 / tau }},
		{"quantization noise", QN, []float64{0.5}, func(tau float64) float64 { return 1.5 / (tau * tau) }},
		{"random walk", RW, []float64{0.1}, func(tau float64) float64 { return 0.1 * (tau*tau + 2) / (12 * tau) }},
		{"drift", DR, []float64{-0.2}, func(tau float64) float64 { return 0.04 * tau * tau / 16 }},
		{"ma1", MA1, []float64{0.4, 1.3}, func(tau float64) float64 { return 1.3 * (1.96*tau - 2.4) / (tau * tau) }},
		{"ar1 with phi zero is white noise", AR1, []float64{0, 3}, func(tau float64) float64 { return 3 / tau }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewModel(tt.kind).WaveletVariance(tt.theta, scales)
			require.NoError(t, err)
			require.Len(t, got, len(scales))
			for j, tau := range scales {
				assert.InDelta(t, tt.want(tau), got[j], 1e-12*math.Max(1, tt.want(tau)), "scale %v", tau)
			}
		})
	}
}

func TestWaveletVariance_AR1MatchesAutocovarianceSum(t *testing.T) {
	phi, sigma2 := 0.7, 1.3
	gamma := func(h int) float64 { return sigma2 * math.Pow(phi, float64(h)) / (1 - phi*phi) }

	scales := dyadicScales(5)
	got, err := NewModel(AR1).WaveletVariance([]float64{phi, sigma2}, scales)
	require.NoError(t, err)

	for j, tau := range scales {
		n := int(tau)
		coef := make([]float64, n)
		for i := range coef {
			if i < n/2 {
				coef[i] = -1
			} else {
				coef[i] = 1
			}
		}
		var v float64
		for a := 0; a < n; a++ {
			for b := 0; b < n; b++ {
				h := a - b
				if h < 0 {
					h = -h
				}
				v += coef[a] * coef[b] * gamma(h)
			}
		}
		v /= tau * tau
		assert.InDelta(t, v, got[j], 1e-12, "tau=%v", tau)
	}
}

func TestWaveletVariance_GMEqualsAR1(t *testing.T) {
	beta, s2 := 0.3, 2.0
	phi := math.Exp(-beta)
	scales := dyadicScales(8)

	gm, err := NewModel(GM).WaveletVariance([]float64{beta, s2}, scales)
	require.NoError(t, err)
	ar, err := NewModel(AR1).WaveletVariance([]float64{phi, s2 * (1 - phi*phi)}, scales)
	require.NoError(t, err)
	assert.InDeltaSlice(t, ar, gm, 1e-12)
}

func TestWaveletVariance_NonnegativeAndAdditive(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	scales := dyadicScales(12)
	kinds := Kinds()

	randomTheta := func(k Kind) []float64 {
		switch k {
		case DR:
			return []float64{rng.NormFloat64()}
		case AR1, MA1:
			return []float64{rng.Float64()*1.98 - 0.99, rng.ExpFloat64()}
		case GM:
			return []float64{rng.ExpFloat64() + 1e-3, rng.ExpFloat64()}
		default:
			return []float64{rng.ExpFloat64()}
		}
	}

	for trial := 0; trial < 200; trial++ {
		k1 := kinds[rng.IntN(len(kinds))]
		k2 := kinds[rng.IntN(len(kinds))]
		p1, p2 := randomTheta(k1), randomTheta(k2)

		wv1, err := NewModel(k1).WaveletVariance(p1, scales)
		require.NoError(t, err)
		wv2, err := NewModel(k2).WaveletVariance(p2, scales)
		require.NoError(t, err)
		both, err := NewModel(k1, k2).WaveletVariance(append(append([]float64{}, p1...), p2...), scales)
		require.NoError(t, err)

		for j := range scales {
			if both[j] < 0 || wv1[j] < 0 || wv2[j] < 0 {
				t.Fatalf("negative wavelet variance for %s+%s at scale %v", k1, k2, scales[j])
			}
			if math.Abs(both[j]-(wv1[j]+wv2[j])) > epsilon*math.Max(1, both[j]) {
				t.Fatalf("additivity violated for %s+%s at scale %v: %g != %g + %g",
					k1, k2, scales[j], both[j], wv1[j], wv2[j])
			}
		}
	}
}

func TestComponentWV(t *testing.T) {
	m := NewModel(WN, RW)
	theta := []float64{1, 0.01}
	scales := dyadicScales(4)

	total, err := m.WaveletVariance(theta, scales)
	require.NoError(t, err)
	c0, err := m.ComponentWV(0, theta, scales)
	require.NoError(t, err)
	c1, err := m.ComponentWV(1, theta, scales)
	require.NoError(t, err)
	for j := range scales {
		assert.InDelta(t, total[j], c0[j]+c1[j], epsilon)
	}

	_, err = m.ComponentWV(2, theta, scales)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		model    Model
		theta    []float64
		sentinel error
		index    int
	}{
		{"negative variance", NewModel(WN), []float64{-1}, gmwmErrors.ErrInvalidParameter, 0},
		{"nonstationary ar1", NewModel(WN, AR1), []float64{1, 1.0, 1}, gmwmErrors.ErrInvalidParameter, 1},
		{"negative ar1 variance", NewModel(AR1), []float64{0.5, -0.1}, gmwmErrors.ErrInvalidParameter, 1},
		{"noninvertible ma1", NewModel(MA1), []float64{-1, 1}, gmwmErrors.ErrInvalidParameter, 0},
		{"nonpositive beta", NewModel(GM), []float64{0, 1}, gmwmErrors.ErrInvalidParameter, 0},
		{"nan drift", NewModel(DR), []float64{math.NaN()}, gmwmErrors.ErrInvalidParameter, 0},
		{"inf random walk", NewModel(RW), []float64{math.Inf(1)}, gmwmErrors.ErrInvalidParameter, 0},
		{"short theta", NewModel(WN, RW), []float64{1}, gmwmErrors.ErrDimensionMismatch, -1},
		{"bad descriptor", Model{Components: []Component{{Kind: AR1, NParams: 1}}}, []float64{0.5}, gmwmErrors.ErrDimensionMismatch, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.model.Validate(tt.theta)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)

			_, wvErr := tt.model.WaveletVariance(tt.theta, dyadicScales(3))
			assert.ErrorIs(t, wvErr, tt.sentinel)

			if tt.index >= 0 {
				var pe *gmwmErrors.ParameterError
				require.ErrorAs(t, err, &pe)
				assert.Equal(t, tt.index, pe.Index)
			}
		})
	}

	assert.Error(t, Model{}.Validate(nil))
	assert.NoError(t, NewModel(WN, QN, RW, DR, AR1, MA1, GM).Validate([]float64{1, 1, 1, -1, 0.5, 1, 0.2, 1, 1, 1}))
}

func TestWaveletVariance_RejectsBadScales(t *testing.T) {
	m := NewModel(WN)
	for _, scales := range [][]float64{nil, {1}, {3}, {2, 6}, {0}, {math.NaN()}} {
		_, err := m.WaveletVariance([]float64{1}, scales)
		assert.Error(t, err, "scales %v", scales)
	}
}

func TestParseModel(t *testing.T) {
	m, err := ParseModel([]string{"wn", "AR1", "RW"}, []int{1, 2, 1})
	require.NoError(t, err)
	assert.Equal(t, 4, m.NParams())
	assert.Equal(t, []int{0, 1, 3}, m.Offsets())
	assert.Equal(t, "WN + AR1 + RW", m.String())
	assert.Equal(t, []string{"WN.sigma2", "AR1.phi", "AR1.sigma2", "RW.gamma2"}, m.ParamNames())

	_, err = ParseModel([]string{"WN"}, []int{2})
	assert.ErrorIs(t, err, gmwmErrors.ErrDimensionMismatch)

	_, err = ParseModel([]string{"WN", "RW"}, []int{1})
	assert.ErrorIs(t, err, gmwmErrors.ErrDimensionMismatch)

	_, err = ParseModel([]string{"ARMA"}, []int{3})
	assert.Error(t, err)

	_, err = ParseModel(nil, nil)
	assert.Error(t, err)
}

func TestParamNames_RepeatedKinds(t *testing.T) {
	m := NewModel(AR1, AR1)
	assert.Equal(t, []string{"AR1.phi", "AR1.sigma2", "AR1#2.phi", "AR1#2.sigma2"}, m.ParamNames())
}

func TestTransformRoundTrip(t *testing.T) {
	m := NewModel(WN, QN, RW, DR, AR1, MA1, GM)
	theta := []float64{2, 0.1, 1e-4, -0.3, -0.8, 0.5, 0.25, 1.5, 0.05, 3}

	u, err := m.Transform(theta)
	require.NoError(t, err)
	back, err := m.Untransform(u)
	require.NoError(t, err)
	for i := range theta {
		assert.InDelta(t, theta[i], back[i], 1e-12*math.Max(1, math.Abs(theta[i])), "index %d", i)
	}

	_, err = m.Untransform([]float64{1})
	assert.ErrorIs(t, err, gmwmErrors.ErrDimensionMismatch)
}

func TestUntransform_StaysAdmissible(t *testing.T) {
	m := NewModel(AR1)
	theta, err := m.Untransform([]float64{80, 0})
	require.NoError(t, err)
	assert.NoError(t, m.Validate(theta))
}

func TestStartingValues(t *testing.T) {
	scales := dyadicScales(10)

	t.Run("white noise is exact", func(t *testing.T) {
		m := NewModel(WN)
		wv, err := m.WaveletVariance([]float64{2}, scales)
		require.NoError(t, err)
		start, err := StartingValues(wv, scales, m)
		require.NoError(t, err)
		assert.InDelta(t, 2.0, start[0], epsilon)
	})

	t.Run("random walk is exact", func(t *testing.T) {
		m := NewModel(RW)
		wv, err := m.WaveletVariance([]float64{0.03}, scales)
		require.NoError(t, err)
		start, err := StartingValues(wv, scales, m)
		require.NoError(t, err)
		assert.InDelta(t, 0.03, start[0], epsilon)
	})

	t.Run("drift is exact up to sign", func(t *testing.T) {
		m := NewModel(DR)
		wv, err := m.WaveletVariance([]float64{-0.5}, scales)
		require.NoError(t, err)
		start, err := StartingValues(wv, scales, m)
		require.NoError(t, err)
		assert.InDelta(t, 0.5, start[0], 1e-12)
	})

	t.Run("ar1 is close", func(t *testing.T) {
		long := dyadicScales(16)
		m := NewModel(AR1)
		wv, err := m.WaveletVariance([]float64{0.6, 1.0}, long)
		require.NoError(t, err)
		start, err := StartingValues(wv, long, m)
		require.NoError(t, err)
		assert.InDelta(t, 0.6, start[0], 0.01)
		assert.InDelta(t, 1.0, start[1], 0.05)
	})

	t.Run("composite stays admissible", func(t *testing.T) {
		m := NewModel(WN, QN, RW, DR, AR1, MA1, GM)
		wv := make([]float64, len(scales))
		wv[0] = 0 // zero entries are floored
		for j := 1; j < len(wv); j++ {
			wv[j] = 1 / scales[j]
		}
		start, err := StartingValues(wv, scales, m)
		require.NoError(t, err)
		assert.NoError(t, m.Validate(start))
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		_, err := StartingValues([]float64{1, 2}, scales, NewModel(WN))
		assert.ErrorIs(t, err, gmwmErrors.ErrDimensionMismatch)
	})
}

func TestSimulate(t *testing.T) {
	t.Run("reproducible", func(t *testing.T) {
		m := NewModel(WN, AR1, QN)
		theta := []float64{1, 0.5, 2, 0.1}
		a, err := Simulate(theta, m, 256, rand.NewPCG(1, 2))
		require.NoError(t, err)
		b, err := Simulate(theta, m, 256, rand.NewPCG(1, 2))
		require.NoError(t, err)
		assert.Equal(t, a, b)
		c, err := Simulate(theta, m, 256, rand.NewPCG(1, 3))
		require.NoError(t, err)
		assert.NotEqual(t, a, c)
	})

	t.Run("white noise variance", func(t *testing.T) {
		x, err := Simulate([]float64{4}, NewModel(WN), 50000, rand.NewPCG(3, 4))
		require.NoError(t, err)
		assert.InDelta(t, 4.0, stat.Variance(x, nil), 0.15)
	})

	t.Run("gauss-markov marginal variance", func(t *testing.T) {
		x, err := Simulate([]float64{0.5, 2}, NewModel(GM), 100000, rand.NewPCG(5, 6))
		require.NoError(t, err)
		assert.InDelta(t, 2.0, stat.Variance(x, nil), 0.15)
	})

	t.Run("drift is deterministic", func(t *testing.T) {
		x, err := Simulate([]float64{0.5}, NewModel(DR), 4, rand.NewPCG(0, 0))
		require.NoError(t, err)
		assert.Equal(t, []float64{0.5, 1, 1.5, 2}, x)
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := Simulate([]float64{-1}, NewModel(WN), 10, rand.NewPCG(0, 0))
		assert.ErrorIs(t, err, gmwmErrors.ErrInvalidParameter)
		_, err = Simulate([]float64{1}, NewModel(WN), 0, rand.NewPCG(0, 0))
		assert.Error(t, err)
	})
}

func TestKind(t *testing.T) {
	for _, k := range Kinds() {
		parsed, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
		assert.Len(t, k.ParamNames(), k.NParams())
	}
	assert.Equal(t, "Kind(99)", Kind(99).String())
	assert.Equal(t, 0, Kind(99).NParams())

	_, err := ParseKind("ARMA")
	var verr *gmwmErrors.ValueError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Error(), `"ARMA"`)
}

func TestKind_ScaleParam(t *testing.T) {
	// the curve at the scale parameter set to 1, times its value, is the curve
	scales := dyadicScales(6)
	cases := []struct {
		kind Kind
		p    []float64
	}{
		{WN, []float64{2}},
		{QN, []float64{0.3}},
		{RW, []float64{1e-3}},
		{AR1, []float64{0.7, 0.4}},
		{MA1, []float64{-0.3, 1.5}},
		{GM, []float64{0.2, 0.9}},
	}
	for _, tc := range cases {
		t.Run(tc.kind.String(), func(t *testing.T) {
			m := NewModel(tc.kind)
			k := tc.kind.ScaleParam()
			require.GreaterOrEqual(t, k, 0)
			full, err := m.WaveletVariance(tc.p, scales)
			require.NoError(t, err)
			unit := append([]float64(nil), tc.p...)
			unit[k] = 1
			base, err := m.WaveletVariance(unit, scales)
			require.NoError(t, err)
			for j := range scales {
				assert.InEpsilon(t, full[j], tc.p[k]*base[j], 1e-12)
			}
		})
	}
	assert.Equal(t, -1, DR.ScaleParam())
	assert.Equal(t, -1, Kind(99).ScaleParam())
}
