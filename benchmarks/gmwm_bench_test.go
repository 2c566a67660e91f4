package benchmarks

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime"
	"testing"

	"github.com/ezoic/gmwm/gmwm"
	"github.com/ezoic/gmwm/pkg/log"
	"github.com/ezoic/gmwm/process"
	"github.com/ezoic/gmwm/wvar"
)

func series(b *testing.B, m process.Model, theta []float64, n int) []float64 {
	b.Helper()
	data, err := process.Simulate(theta, m, n, rand.NewPCG(1, uint64(n)))
	if err != nil {
		b.Fatal(err)
	}
	return data
}

// BenchmarkHaarEstimate covers both the sequential and the per-level parallel path.
func BenchmarkHaarEstimate(b *testing.B) {
	m := process.NewModel(process.WN, process.RW)
	for _, n := range []int{1 << 12, 1 << 16, 1 << 20} {
		data := series(b, m, []float64{1, 1e-4}, n)
		levels := wvar.MaxLevels(n)
		b.Run(fmt.Sprintf("N=%d", n), func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(8 * n))
			for i := 0; i < b.N; i++ {
				if _, err := (wvar.Haar{Alpha: 0.05}).Estimate(data, levels); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkTheoreticalWV(b *testing.B) {
	m := process.NewModel(process.WN, process.GM, process.AR1, process.RW, process.DR)
	theta := []float64{1, 0.01, 0.2, 0.9, 0.1, 1e-5, 1e-3}
	scales := wvar.Scales(20)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := m.WaveletVariance(theta, scales); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkMaster(b *testing.B) {
	m := process.NewModel(process.WN, process.AR1)
	data := series(b, m, []float64{1, 0.9, 0.1}, 1<<14)
	emp, err := (wvar.Haar{Alpha: 0.05}).Estimate(data, wvar.MaxLevels(len(data)))
	if err != nil {
		b.Fatal(err)
	}

	cases := []struct {
		name string
		opts []gmwm.Option
	}{
		{"Fast", nil},
		{"Robust", []gmwm.Option{gmwm.WithRobust(0.6)}},
		{"Bootstrap", []gmwm.Option{gmwm.WithBootstrap(1, 20, 100)}},
	}
	for _, c := range cases {
		cfg := gmwm.DefaultConfig().Apply(append(c.opts, gmwm.WithLogger(log.Nop()), gmwm.WithSearchCandidates(20))...)
		b.Run(c.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := gmwm.Master(context.Background(), gmwm.FromWV(emp), nil, m, true, cfg); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkBootstrapWorkers measures replicate throughput against pool size.
func BenchmarkBootstrapWorkers(b *testing.B) {
	m := process.NewModel(process.WN, process.RW)
	theta := []float64{1, 1e-4}
	scales := wvar.Scales(10)
	for _, workers := range []int{1, 2, runtime.GOMAXPROCS(0)} {
		cfg := gmwm.DefaultConfig().Apply(gmwm.WithLogger(log.Nop()), gmwm.WithBootstrap(1, 0, 64), gmwm.WithWorkers(workers))
		b.Run(fmt.Sprintf("workers=%d", workers), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := gmwm.BootstrapV(context.Background(), theta, m, 1<<12, scales, cfg); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
