package process

import (
	"math"
	"strconv"
	"strings"

	gmwmErrors "github.com/ezoic/gmwm/pkg/errors"
)

// Component is one entry of a model description: its kind and the number of
// parameters it owns in theta.
type Component struct {
	Kind    Kind
	NParams int
}

// Model is an ordered composite of independent additive components.
// The zero value is an empty model.
type Model struct {
	Components []Component
}

// NewModel builds a model from kinds, using each kind's parameter count.
func NewModel(kinds ...Kind) Model {
	comps := make([]Component, len(kinds))
	for i, k := range kinds {
		comps[i] = Component{Kind: k, NParams: k.NParams()}
	}
	return Model{Components: comps}
}

// ParseModel builds a model from component labels and per-component parameter
// counts, as produced by a model description parser.
//
// Errors:
//   - ErrDimensionMismatch: len(labels) != len(counts), or a count disagrees with its kind
//   - ValueError: unknown label or empty model
func ParseModel(labels []string, counts []int) (Model, error) {
	if len(labels) != len(counts) {
		return Model{}, gmwmErrors.NewDimensionError("ParseModel", len(labels), len(counts), 0)
	}
	if len(labels) == 0 {
		return Model{}, gmwmErrors.NewValueError("ParseModel", "model has no components")
	}
	comps := make([]Component, len(labels))
	for i, label := range labels {
		k, err := ParseKind(label)
		if err != nil {
			return Model{}, err
		}
		if counts[i] != k.NParams() {
			return Model{}, gmwmErrors.NewDimensionError("ParseModel."+k.String(), k.NParams(), counts[i], i)
		}
		comps[i] = Component{Kind: k, NParams: counts[i]}
	}
	return Model{Components: comps}, nil
}

// Len returns the number of components.
func (m Model) Len() int { return len(m.Components) }

// NParams returns the total parameter count, i.e. the required length of theta.
func (m Model) NParams() int {
	n := 0
	for _, c := range m.Components {
		n += c.NParams
	}
	return n
}

// Offsets returns the start index of each component's slice in theta.
func (m Model) Offsets() []int {
	off := make([]int, len(m.Components))
	pos := 0
	for i, c := range m.Components {
		off[i] = pos
		pos += c.NParams
	}
	return off
}

// Labels returns the component labels in model order.
func (m Model) Labels() []string {
	out := make([]string, len(m.Components))
	for i, c := range m.Components {
		out[i] = c.Kind.String()
	}
	return out
}

// ParamNames returns "LABEL.param" names in theta order. Repeated kinds are
// suffixed with their occurrence, e.g. "AR1.phi", "AR1#2.phi".
func (m Model) ParamNames() []string {
	seen := make(map[Kind]int)
	var names []string
	for _, c := range m.Components {
		seen[c.Kind]++
		label := c.Kind.String()
		if seen[c.Kind] > 1 {
			label = label + "#" + strconv.Itoa(seen[c.Kind])
		}
		for _, p := range c.Kind.ParamNames() {
			names = append(names, label+"."+p)
		}
	}
	return names
}

func (m Model) String() string {
	return strings.Join(m.Labels(), " + ")
}

// Slice returns the parameters of component i.
func (m Model) Slice(theta []float64, i int) []float64 {
	off := 0
	for j := 0; j < i; j++ {
		off += m.Components[j].NParams
	}
	return theta[off : off+m.Components[i].NParams]
}

// Validate checks the model description and that theta lies in the admissible
// domain of every component. It performs no wavelet-variance arithmetic.
//
// Errors:
//   - ErrDimensionMismatch: len(theta) != NParams(), or a descriptor count disagrees with its kind
//   - ErrInvalidParameter (*ParameterError): non-finite value, negative variance,
//     |phi| >= 1, |theta| >= 1 or beta <= 0
func (m Model) Validate(theta []float64) error {
	if err := m.validateDescriptors("Model.Validate"); err != nil {
		return err
	}
	if len(theta) != m.NParams() {
		return gmwmErrors.NewDimensionError("Model.Validate", m.NParams(), len(theta), 0)
	}

	off := 0
	for _, c := range m.Components {
		if err := validateComponent(c.Kind, theta[off:off+c.NParams], off); err != nil {
			return err
		}
		off += c.NParams
	}
	return nil
}

func validateComponent(k Kind, p []float64, off int) error {
	names := catalogue[k].params
	bad := func(i int, reason string) error {
		return gmwmErrors.NewParameterError("Model.Validate", k.String(), names[i], off+i, p[i], reason)
	}
	for i, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return bad(i, "must be finite")
		}
	}

	switch k {
	case WN, QN, RW:
		if p[0] < 0 {
			return bad(0, "must be >= 0")
		}
	case DR:
		// any finite slope
	case AR1:
		if math.Abs(p[0]) >= 1 {
			return bad(0, "must satisfy |phi| < 1")
		}
		if p[1] < 0 {
			return bad(1, "must be >= 0")
		}
	case MA1:
		if math.Abs(p[0]) >= 1 {
			return bad(0, "must satisfy |theta| < 1")
		}
		if p[1] < 0 {
			return bad(1, "must be >= 0")
		}
	case GM:
		if p[0] <= 0 {
			return bad(0, "must be > 0")
		}
		if p[1] < 0 {
			return bad(1, "must be >= 0")
		}
	}
	return nil
}

func (m Model) validateDescriptors(op string) error {
	if len(m.Components) == 0 {
		return gmwmErrors.NewValueError(op, "model has no components")
	}
	for i, c := range m.Components {
		if !c.Kind.valid() {
			return gmwmErrors.NewValueError(op, "unknown component kind "+c.Kind.String())
		}
		if c.NParams != c.Kind.NParams() {
			return gmwmErrors.NewDimensionError(op+"."+c.Kind.String(), c.Kind.NParams(), c.NParams, i)
		}
	}
	return nil
}
