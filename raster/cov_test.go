// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package raster

import (
	"math"
	"testing"

	"github.com/gogpu/splat/gradcheck"
)

func fdSettings() gradcheck.Settings {
	return gradcheck.Settings{Step: 1e-6, RelTol: 1e-5, AbsTol: 1e-9}
}

func TestQuatToRotIdentity(t *testing.T) {
	r := quatToRot([4]float64{1, 0, 0, 0})
	want := mat3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	if r != want {
		t.Errorf("identity quaternion: got %v", r)
	}
}

func TestQuatToRotOrthonormal(t *testing.T) {
	qn, _ := normalizeQuat([4]float64{0.3, -0.5, 0.7, 0.2})
	r := quatToRot(qn)
	rt := transpose3(r)
	id := mul3(r, rt)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.0
			if i == j {
				want = 1
			}
			if math.Abs(id[i][j]-want) > 1e-12 {
				t.Fatalf("RRᵀ[%d][%d] = %v, want %v", i, j, id[i][j], want)
			}
		}
	}
	det := r[0][0]*(r[1][1]*r[2][2]-r[1][2]*r[2][1]) -
		r[0][1]*(r[1][0]*r[2][2]-r[1][2]*r[2][0]) +
		r[0][2]*(r[1][0]*r[2][1]-r[1][1]*r[2][0])
	if math.Abs(det-1) > 1e-12 {
		t.Errorf("det(R) = %v, want 1", det)
	}
}

func TestQuatToRotVJP(t *testing.T) {
	// Weights contract the rotation matrix to a scalar so the VJP can be
	// compared against finite differences of the raw quaternion.
	w := mat3{{0.3, -1.1, 0.7}, {0.2, 0.9, -0.4}, {-0.6, 0.5, 1.3}}
	x := []float64{0.8, -0.3, 0.45, 0.25}

	f := func(x []float64) float64 {
		qn, _ := normalizeQuat([4]float64{x[0], x[1], x[2], x[3]})
		r := quatToRot(qn)
		s := 0.0
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				s += w[i][j] * r[i][j]
			}
		}
		return s
	}

	qn, norm := normalizeQuat([4]float64{x[0], x[1], x[2], x[3]})
	vq := normalizeQuatVJP(qn, norm, quatToRotVJP(qn, w))
	if err := gradcheck.Check(f, x, vq[:], fdSettings()); err != nil {
		t.Error(err)
	}
}

func TestScaleRotToCov3DVJP(t *testing.T) {
	const glob = 0.9
	w := [6]float64{0.4, -0.7, 0.2, 1.1, -0.3, 0.6}
	x := []float64{1.2, 0.5, 2.0, 0.8, -0.3, 0.45, 0.25} // scale then quat

	f := func(x []float64) float64 {
		qn, _ := normalizeQuat([4]float64{x[3], x[4], x[5], x[6]})
		_, cov := scaleRotToCov3D(vec3{x[0], x[1], x[2]}, glob, quatToRot(qn))
		s := 0.0
		for k := 0; k < 6; k++ {
			s += w[k] * cov[k]
		}
		return s
	}

	qn, norm := normalizeQuat([4]float64{x[3], x[4], x[5], x[6]})
	r := quatToRot(qn)
	vScale, vR := scaleRotToCov3DVJP(vec3{x[0], x[1], x[2]}, glob, r, w)
	vq := normalizeQuatVJP(qn, norm, quatToRotVJP(qn, vR))

	analytic := append(vScale[:], vq[:]...)
	if err := gradcheck.Check(f, x, analytic, fdSettings()); err != nil {
		t.Error(err)
	}
}

func TestCov2DToConicVJP(t *testing.T) {
	w := [3]float64{0.7, -1.2, 0.4}
	x := []float64{2.5, 0.6, 1.8} // positive definite: det > 0

	f := func(x []float64) float64 {
		conic, _, ok := conicFromCov2D(x[0], x[1], x[2])
		if !ok {
			t.Fatal("degenerate covariance in test input")
		}
		return w[0]*conic[0] + w[1]*conic[1] + w[2]*conic[2]
	}

	conic, _, _ := conicFromCov2D(x[0], x[1], x[2])
	va, vb, vc := cov2DToConicVJP(conic, w)
	if err := gradcheck.Check(f, x, []float64{va, vb, vc}, fdSettings()); err != nil {
		t.Error(err)
	}
}

func TestProjectCov3DVJP(t *testing.T) {
	qn, _ := normalizeQuat([4]float64{0.9, 0.1, -0.2, 0.3})
	w := quatToRot(qn) // arbitrary world-to-camera rotation
	const fx, fy = 120.0, 115.0
	tPoint := vec3{0.4, -0.25, 5.0}

	// Contract (a, b, c, comp) to a scalar.
	cw := [4]float64{0.5, -0.9, 0.3, 1.4}

	// x packs the covariance upper triangle and the view-space point. The
	// point stays far from the frustum clamp so no clip mask engages.
	_, cov := scaleRotToCov3D(vec3{1.5, 0.7, 2.2}, 1, w)
	x := append(cov[:], tPoint[:]...)

	f := func(x []float64) float64 {
		var cov6 [6]float64
		copy(cov6[:], x[:6])
		tp := vec3{x[6], x[7], x[8]}
		a, b, c, comp := projectCov3D(cov6, tp, fx, fy, w)
		return cw[0]*a + cw[1]*b + cw[2]*c + cw[3]*comp
	}

	a, b, c, comp := projectCov3D(cov, tPoint, fx, fy, w)
	ca, cb, cc := compensationVJP(a, b, c, comp, cw[3])
	vCov3, vT := projectCov3DVJP(cov, tPoint, fx, fy, w, cw[0]+ca, cw[1]+cb, cw[2]+cc, false, false)

	analytic := append(vCov3[:], vT[:]...)
	if err := gradcheck.Check(f, x, analytic, fdSettings()); err != nil {
		t.Error(err)
	}
}

func TestRadiusFromCov2D(t *testing.T) {
	// Isotropic covariance: radius is three standard deviations.
	a, b, c := 4.0, 0.0, 4.0
	det := a*c - b*b
	if got := radiusFromCov2D(a, b, c, det); got != 6 {
		t.Errorf("radius = %d, want 6", got)
	}
}

func TestCompensationRange(t *testing.T) {
	// Large footprints are barely affected by the blur, tiny ones strongly.
	_, _, _, compBig := projectCov3D([6]float64{25, 0, 0, 25, 0, 25}, vec3{0, 0, 5}, 100, 100, mat3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}})
	_, _, _, compSmall := projectCov3D([6]float64{1e-4, 0, 0, 1e-4, 0, 1e-4}, vec3{0, 0, 5}, 100, 100, mat3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}})
	if compBig <= compSmall {
		t.Fatalf("compensation should grow with footprint: big %v, small %v", compBig, compSmall)
	}
	if compBig > 1 || compSmall < 0 {
		t.Errorf("compensation out of [0, 1]: big %v, small %v", compBig, compSmall)
	}
}
