// Package process describes composite stochastic-process models and their
// theoretical Haar wavelet variance.
//
// A Model is an ordered list of independent additive components drawn from a
// closed catalogue (Kind). Each Kind has a fixed number of parameters and a
// closed-form wavelet variance; the model's wavelet variance is the sum of its
// components' contributions. The parameter vector theta is laid out component by
// component in model order.
//
//	m := process.NewModel(process.WN, process.RW)
//	wv, err := m.WaveletVariance([]float64{2.0, 0.01}, wvar.Scales(10))
//
// Scales are Haar filter lengths 2^1..2^J.
package process

import (
	"fmt"
	"strings"

	gmwmErrors "github.com/ezoic/gmwm/pkg/errors"
)

// Kind identifies an elementary process in the catalogue.
type Kind int

const (
	// WN is Gaussian white noise with variance sigma2.
	WN Kind = iota
	// QN is quantization noise with parameter q2.
	QN
	// RW is a random walk with innovation variance gamma2.
	RW
	// DR is a deterministic linear drift with slope omega.
	DR
	// AR1 is a stationary first-order autoregression (phi, sigma2).
	AR1
	// MA1 is an invertible first-order moving average (theta, sigma2).
	MA1
	// GM is a Gauss-Markov process (beta, sigma2_gm), an AR1 with phi = exp(-beta)
	// and marginal variance sigma2_gm.
	GM
)

type kindInfo struct {
	label  string
	params []string
	// scale is the parameter the wavelet variance is proportional to, or -1.
	scale int
}

var catalogue = [...]kindInfo{
	WN:  {"WN", []string{"sigma2"}, 0},
	QN:  {"QN", []string{"q2"}, 0},
	RW:  {"RW", []string{"gamma2"}, 0},
	DR:  {"DR", []string{"omega"}, -1},
	AR1: {"AR1", []string{"phi", "sigma2"}, 1},
	MA1: {"MA1", []string{"theta", "sigma2"}, 1},
	GM:  {"GM", []string{"beta", "sigma2_gm"}, 1},
}

// Kinds lists the catalogue in declaration order.
func Kinds() []Kind {
	return []Kind{WN, QN, RW, DR, AR1, MA1, GM}
}

func (k Kind) valid() bool {
	return k >= 0 && int(k) < len(catalogue)
}

// String returns the component label.
func (k Kind) String() string {
	if !k.valid() {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return catalogue[k].label
}

// NParams returns the number of parameters of the component.
func (k Kind) NParams() int {
	if !k.valid() {
		return 0
	}
	return len(catalogue[k].params)
}

// ParamNames returns the parameter names in theta order.
func (k Kind) ParamNames() []string {
	if !k.valid() {
		return nil
	}
	return append([]string(nil), catalogue[k].params...)
}

// ScaleParam returns the index of the parameter the component's wavelet
// variance is linear in, or -1 when there is none (DR).
func (k Kind) ScaleParam() int {
	if !k.valid() {
		return -1
	}
	return catalogue[k].scale
}

// ParseKind maps a label such as "AR1" (case-insensitive) to its Kind.
func ParseKind(label string) (Kind, error) {
	l := strings.ToUpper(strings.TrimSpace(label))
	for _, k := range Kinds() {
		if catalogue[k].label == l {
			return k, nil
		}
	}
	return 0, gmwmErrors.NewValueError("ParseKind", fmt.Sprintf("unknown process label %q", label))
}
