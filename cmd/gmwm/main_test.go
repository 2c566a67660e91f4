package main

import (
	"bytes"
	"context"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezoic/gmwm/process"
	gmwmErrors "github.com/ezoic/gmwm/pkg/errors"
)

func writeSeries(t *testing.T, data []float64) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("t,value\n")
	for i, v := range data {
		b.WriteString(strconv.Itoa(i))
		b.WriteString(",")
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		b.WriteString("\n")
	}
	path := filepath.Join(t.TempDir(), "series.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
	return path
}

func TestParseModel(t *testing.T) {
	m, err := parseModel("WN+ar1, RW")
	require.NoError(t, err)
	assert.Equal(t, "WN + AR1 + RW", m.String())
	assert.Equal(t, 4, m.NParams())

	_, err = parseModel("")
	assert.Error(t, err)
	_, err = parseModel("WN,ARMA")
	var verr *gmwmErrors.ValueError
	assert.ErrorAs(t, err, &verr)
}

func TestReadSeries(t *testing.T) {
	data, err := readSeries(strings.NewReader("1.5\n\n-2\n3e-1\n"), 0, false)
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, -2, 0.3}, data)

	data, err = readSeries(strings.NewReader("a,b\n0,4\n1,5\n"), 1, true)
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 5}, data)

	_, err = readSeries(strings.NewReader("1\n2\n"), 1, false)
	assert.ErrorIs(t, err, gmwmErrors.ErrDimensionMismatch)
	_, err = readSeries(strings.NewReader("1\nx\n"), 0, false)
	assert.Error(t, err)
	_, err = readSeries(strings.NewReader(""), 0, false)
	assert.ErrorIs(t, err, gmwmErrors.ErrEmptyData)

	_, err = readSeries(strings.NewReader("1\n2\n"), -1, false)
	var verr *gmwmErrors.ValueError
	assert.ErrorAs(t, err, &verr)
}

func TestRun(t *testing.T) {
	t.Setenv("GMWM_H", "10")
	m := process.NewModel(process.WN, process.RW)
	data, err := process.Simulate([]float64{1, 1e-3}, m, 1<<12, rand.NewPCG(3, 4))
	require.NoError(t, err)
	input := writeSeries(t, data)
	plot := filepath.Join(t.TempDir(), "fit.png")

	var out bytes.Buffer
	err = run(context.Background(), []string{
		"--model", "WN,RW", "--input", input, "--column", "1", "--header",
		"--plot", plot, "--log-level", "error", "--seed", "7",
	}, nil, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "GMWM fit: WN + RW")
	assert.Contains(t, out.String(), "RW.gamma2")
	assert.Contains(t, out.String(), "J test:")

	info, err := os.Stat(plot)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestRun_Stdin(t *testing.T) {
	var in strings.Builder
	for _, v := range []float64{0.3, -1.2, 0.8, 1.1, -0.4, 0.2, -0.9, 1.4} {
		in.WriteString(strconv.FormatFloat(v, 'g', -1, 64) + "\n")
	}
	var out bytes.Buffer
	err := run(context.Background(), []string{"-m", "WN", "--theta", "1", "--log-level", "error"},
		strings.NewReader(in.String()), &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "WN.sigma2")
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing model", []string{"--input", "nope.csv"}},
		{"unknown flag", []string{"--model", "WN", "--bogus"}},
		{"missing file", []string{"--model", "WN", "--input", filepath.Join(t.TempDir(), "missing.csv")}},
		{"bad theta", []string{"--model", "WN", "--theta", "x"}},
		{"bad compute-v", []string{"--model", "WN", "--compute-v", "sandwich"}},
		{"negative column", []string{"--model", "WN", "--column", "-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append(tt.args, "--log-level", "error")
			err := run(context.Background(), args, strings.NewReader("1\n2\n3\n4\n"), &bytes.Buffer{})
			assert.Error(t, err)
		})
	}
}
