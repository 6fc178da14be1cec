// Package selftest runs known-answer and consistency checks over the
// arithmetic engines and the key API, and records their outcome as
// Prometheus metrics.
package selftest

import (
	"context"
	"crypto/sha256"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	corecrypto "github.com/moonfruit/go-corecrypto"
	"github.com/moonfruit/go-corecrypto/ccec"
	"github.com/moonfruit/go-corecrypto/ccerr"
	"github.com/moonfruit/go-corecrypto/ccn"
	"github.com/moonfruit/go-corecrypto/cczp"
	"github.com/moonfruit/go-corecrypto/faultcanary"
	"github.com/moonfruit/go-corecrypto/internal/logging"
	"github.com/moonfruit/go-corecrypto/unit"
	"github.com/moonfruit/go-corecrypto/workspace"
)

type Unit = unit.Unit

// Result is the outcome of one check. Curve is empty for checks that do
// not depend on a curve.
type Result struct {
	Name     string
	Curve    string
	Duration time.Duration
	Err      error
}

func (r Result) Passed() bool {
	return r.Err == nil
}

// Metrics are updated after every check.
type Metrics struct {
	Checks      *prometheus.CounterVec
	Duration    *prometheus.HistogramVec
	LastSuccess prometheus.Gauge
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		Checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "selftest",
			Name:      "checks_total",
			Help:      "Self-test checks run, by check, curve and result.",
		}, []string{"check", "curve", "result"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "selftest",
			Name:      "check_duration_seconds",
			Help:      "Time spent in each self-test check.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"check", "curve"}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "selftest",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run in which every check passed.",
		}),
	}
}

// Collectors returns all metrics for registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	if m == nil {
		return nil
	}
	return []prometheus.Collector{m.Checks, m.Duration, m.LastSuccess}
}

func (m *Metrics) observe(r Result) {
	if m == nil {
		return
	}
	outcome := "pass"
	if !r.Passed() {
		outcome = "fail"
	}
	m.Checks.WithLabelValues(r.Name, r.Curve, outcome).Inc()
	m.Duration.WithLabelValues(r.Name, r.Curve).Observe(r.Duration.Seconds())
}

type Runner struct {
	curves  []*ccec.CurveParams
	rng     io.Reader
	metrics *Metrics
	logger  *zap.SugaredLogger
}

type Option func(*Runner)

// WithCurves restricts the curve checks; the default is every named curve.
func WithCurves(curves ...*ccec.CurveParams) Option {
	return func(r *Runner) {
		r.curves = curves
	}
}

// WithRNG sets the random source of the key checks; nil keeps the system
// source.
func WithRNG(rng io.Reader) Option {
	return func(r *Runner) {
		r.rng = rng
	}
}

func WithMetrics(m *Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		curves: []*ccec.CurveParams{ccec.P192(), ccec.P224(), ccec.P256(), ccec.P384(), ccec.P521()},
		logger: logging.MustGetLogger("selftest"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type check struct {
	name string
	run  func(cp *ccec.CurveParams, rng io.Reader) error
}

var arithmeticChecks = []check{
	{"gcd", checkGCD},
	{"invmod", checkInvMod},
	{"ring", checkRing},
}

var curveChecks = []check{
	{"generator", checkGenerator},
	{"negation", checkNegation},
	{"combined-mult", checkCombinedMult},
	{"ecdh", checkECDH},
	{"ecdsa", checkECDSA},
}

// Run executes every check, stopping early only when ctx is done. The
// returned error is nil when all checks passed.
func (r *Runner) Run(ctx context.Context) ([]Result, error) {
	var results []Result
	failed := 0

	run := func(c check, cp *ccec.CurveParams) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		res := Result{Name: c.name}
		if cp != nil {
			res.Curve = cp.Name()
		}
		start := time.Now()
		res.Err = c.run(cp, r.rng)
		res.Duration = time.Since(start)

		r.metrics.observe(res)
		if res.Passed() {
			r.logger.Debugw("check passed", "check", res.Name, "curve", res.Curve, "duration", res.Duration)
		} else {
			failed++
			r.logger.Errorw("check failed", "check", res.Name, "curve", res.Curve, "error", res.Err)
		}
		results = append(results, res)
		return nil
	}

	for _, c := range arithmeticChecks {
		if err := run(c, nil); err != nil {
			return results, err
		}
	}
	for _, cp := range r.curves {
		for _, c := range curveChecks {
			if err := run(c, cp); err != nil {
				return results, err
			}
		}
	}

	if failed > 0 {
		return results, errors.Errorf("selftest: %d of %d checks failed", failed, len(results))
	}
	if r.metrics != nil {
		r.metrics.LastSuccess.SetToCurrentTime()
	}
	r.logger.Infow("self tests passed", "checks", len(results))
	return results, nil
}

func checkGCD(*ccec.CurveParams, io.Reader) error {
	r := make([]Unit, 1)
	if k := ccn.GCD(nil, r, []Unit{1071}, []Unit{462}); k != 0 || r[0] != 21 {
		return errors.Errorf("gcd(1071, 462) = %d·2^%d, want 21", r[0], k)
	}
	if k := ccn.GCD(nil, r, []Unit{12}, []Unit{18}); k != 1 || r[0] != 3 {
		return errors.Errorf("gcd(12, 18) = %d·2^%d, want 3·2^1", r[0], k)
	}
	return nil
}

func checkInvMod(*ccec.CurveParams, io.Reader) error {
	r := make([]Unit, 1)
	if err := ccn.InvMod(nil, r, []Unit{2}, []Unit{97}); err != nil || r[0] != 49 {
		return errors.Errorf("2⁻¹ mod 97 = %d (%v), want 49", r[0], err)
	}
	if ccn.InvMod(nil, r, []Unit{0}, []Unit{97}) == nil {
		return errors.New("0 is invertible mod 97")
	}
	if ccn.InvMod(nil, r, []Unit{97}, []Unit{97}) == nil {
		return errors.New("97 is invertible mod 97")
	}
	return nil
}

// checkRing exercises both backends and both inverters of Z/(97).
func checkRing(*ccec.CurveParams, io.Reader) error {
	for _, opts := range [][]cczp.Option{
		nil,
		{cczp.WithMontgomery()},
		{cczp.WithMontgomery(), cczp.WithFermatInverse()},
	} {
		zp, err := cczp.New([]Unit{97}, opts...)
		if err != nil {
			return err
		}
		x, r := zp.NewElement(), zp.NewElement()
		if err := zp.SetElement(nil, x, []Unit{2}); err != nil {
			return err
		}
		if err := zp.Inv(nil, r, x); err != nil {
			return errors.WithMessagef(err, "%s/%s", zp.Backend(), zp.Inverter())
		}
		zp.From(nil, r, r)
		if r[0] != 49 {
			return errors.Errorf("%s/%s: 2⁻¹ = %d, want 49", zp.Backend(), zp.Inverter(), r[0])
		}

		// 3 = 10² is a square mod 97, 5 is not.
		if err := zp.SetElement(nil, x, []Unit{3}); err != nil {
			return err
		}
		if err := zp.Sqrt(nil, r, x); err != nil {
			return errors.WithMessagef(err, "%s: sqrt(3)", zp.Backend())
		}
		zp.Sqr(nil, r, r)
		if !zp.Equal(r, x) {
			return errors.Errorf("%s: sqrt(3)² ≠ 3", zp.Backend())
		}
		if err := zp.SetElement(nil, x, []Unit{5}); err != nil {
			return err
		}
		if err := zp.Sqrt(nil, r, x); !errors.Is(err, ccerr.ErrNotSquare) {
			return errors.Errorf("%s: sqrt(5) returned %v", zp.Backend(), err)
		}
	}
	return nil
}

func curveWorkspace(n int) int {
	return 16*n + max(ccec.ProjectifyWorkspace(n), ccec.MultWorkspace(n), ccec.CombinedMultWorkspace(n),
		ccec.FullAddWorkspace(n), ccec.AffinifyWorkspace(n), ccec.IsPointWorkspace(n))
}

func generator(ws *workspace.Workspace, cp *ccec.CurveParams) (*ccec.ProjectivePoint, error) {
	g := cp.AllocPoint(ws)
	if err := cp.Projectify(ws, g, cp.G(), nil); err != nil {
		return nil, err
	}
	return g, nil
}

// checkGenerator verifies that G is on the curve and has order q.
func checkGenerator(cp *ccec.CurveParams, _ io.Reader) error {
	ws := workspace.New(curveWorkspace(cp.N()))
	g, err := generator(ws, cp)
	if err != nil {
		return err
	}
	if !cp.IsPoint(ws, g) {
		return errors.New("generator not on curve")
	}
	r := cp.AllocPoint(ws)
	if err := cp.Mult(ws, r, cp.ZQ().Prime(), cp.OrderBitlen(), g); err != nil {
		return err
	}
	if !cp.IsPointAtInfinity(r) {
		return errors.New("q·G is not the point at infinity")
	}
	return nil
}

// checkNegation verifies (q-1)·G = -G and 2·G = G + G.
func checkNegation(cp *ccec.CurveParams, _ io.Reader) error {
	n := cp.N()
	ws := workspace.New(curveWorkspace(n))
	g, err := generator(ws, cp)
	if err != nil {
		return err
	}

	d := ws.Alloc(n)
	ccn.Sub1(d, cp.ZQ().Prime(), 1)
	r := cp.AllocPoint(ws)
	if err := cp.Mult(ws, r, d, cp.OrderBitlen(), g); err != nil {
		return err
	}
	a := cp.NewAffinePoint()
	if err := cp.Affinify(ws, a, r); err != nil {
		return err
	}
	negY := ws.Alloc(n)
	ccn.Sub(negY, cp.ZP().Prime(), cp.G().Y)
	if !ccn.Equal(a.X, cp.G().X) || !ccn.Equal(a.Y, negY) {
		return errors.New("(q-1)·G ≠ -G")
	}

	ccn.SetI(d, 2)
	if err := cp.Mult(ws, r, d, 2, g); err != nil {
		return err
	}
	sum := cp.AllocPoint(ws)
	cp.FullAdd(ws, sum, g, g)
	b := cp.NewAffinePoint()
	if err := cp.Affinify(ws, a, r); err != nil {
		return err
	}
	if err := cp.Affinify(ws, b, sum); err != nil {
		return err
	}
	if !ccn.Equal(a.X, b.X) || !ccn.Equal(a.Y, b.Y) {
		return errors.New("2·G ≠ G + G")
	}
	return nil
}

// checkCombinedMult verifies 3·G + 5·(2·G) = 13·G.
func checkCombinedMult(cp *ccec.CurveParams, _ io.Reader) error {
	n := cp.N()
	ws := workspace.New(curveWorkspace(n))
	g, err := generator(ws, cp)
	if err != nil {
		return err
	}
	d := ws.Alloc(n)
	e := ws.Alloc(n)
	g2 := cp.AllocPoint(ws)
	sum := cp.AllocPoint(ws)
	want := cp.AllocPoint(ws)

	cp.Double(ws, g2, g)
	ccn.SetI(d, 3)
	ccn.SetI(e, 5)
	if err := cp.CombinedMult(ws, sum, d, g, e, g2); err != nil {
		return err
	}
	ccn.SetI(d, 13)
	if err := cp.Mult(ws, want, d, 4, g); err != nil {
		return err
	}

	x1, x2 := ws.Alloc(n), ws.Alloc(n)
	if err := cp.AffinifyXOnly(ws, x1, sum); err != nil {
		return err
	}
	if err := cp.AffinifyXOnly(ws, x2, want); err != nil {
		return err
	}
	if !ccn.Equal(x1, x2) {
		return errors.New("3·G + 5·2G ≠ 13·G")
	}
	return nil
}

func checkECDH(cp *ccec.CurveParams, rng io.Reader) error {
	a, err := corecrypto.GenerateKey(cp, rng)
	if err != nil {
		return err
	}
	b, err := corecrypto.GenerateKey(cp, rng)
	if err != nil {
		return err
	}
	s1, err := a.SharedSecret(b.Public(), rng)
	if err != nil {
		return err
	}
	s2, err := b.SharedSecret(a.Public(), rng)
	if err != nil {
		return err
	}
	if string(s1) != string(s2) {
		return errors.New("shared secrets differ")
	}
	return nil
}

func checkECDSA(cp *ccec.CurveParams, rng io.Reader) error {
	k, err := corecrypto.GenerateKey(cp, rng)
	if err != nil {
		return err
	}
	digest := sha256.Sum256([]byte("selftest " + cp.Name()))
	sig, err := k.Sign(rng, digest[:])
	if err != nil {
		return err
	}

	canary, err := k.Public().VerifyWithCanary(digest[:], sig)
	if err != nil {
		return err
	}
	if !faultcanary.Equal(canary, faultcanary.ECDSA) {
		return errors.New("valid signature without fault canary")
	}

	digest[0] ^= 1
	canary, err = k.Public().VerifyWithCanary(digest[:], sig)
	if err == nil || faultcanary.Equal(canary, faultcanary.ECDSA) {
		return errors.New("altered digest verified")
	}
	return nil
}
