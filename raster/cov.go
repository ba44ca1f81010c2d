// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package raster

import "math"

// Small fixed-size linear algebra on row-major matrices. The pipeline keeps
// all covariance math in float64 so that finite-difference checks of the
// backward passes hold to tight tolerances.

type vec3 = [3]float64
type mat3 = [3][3]float64

// covBlur is the isotropic low-pass filter added to every projected 2D
// covariance. It guarantees a footprint of at least ~0.3px standard
// deviation so sub-pixel splats stay visible and conics stay invertible.
const covBlur = 0.3

func mul3(a, b mat3) mat3 {
	var m mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m[i][j] = a[i][0]*b[0][j] + a[i][1]*b[1][j] + a[i][2]*b[2][j]
		}
	}
	return m
}

func transpose3(a mat3) mat3 {
	return mat3{
		{a[0][0], a[1][0], a[2][0]},
		{a[0][1], a[1][1], a[2][1]},
		{a[0][2], a[1][2], a[2][2]},
	}
}

func mulVec3(a mat3, v vec3) vec3 {
	return vec3{
		a[0][0]*v[0] + a[0][1]*v[1] + a[0][2]*v[2],
		a[1][0]*v[0] + a[1][1]*v[1] + a[1][2]*v[2],
		a[2][0]*v[0] + a[2][1]*v[1] + a[2][2]*v[2],
	}
}

// mulVec3T computes aᵀ·v.
func mulVec3T(a mat3, v vec3) vec3 {
	return vec3{
		a[0][0]*v[0] + a[1][0]*v[1] + a[2][0]*v[2],
		a[0][1]*v[0] + a[1][1]*v[1] + a[2][1]*v[2],
		a[0][2]*v[0] + a[1][2]*v[1] + a[2][2]*v[2],
	}
}

func cross3(a, b vec3) vec3 {
	return vec3{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

// normalizeQuat returns q/|q| and the original norm. A zero quaternion is
// mapped to identity rotation with norm reported as 1.
func normalizeQuat(q [4]float64) ([4]float64, float64) {
	n := math.Sqrt(q[0]*q[0] + q[1]*q[1] + q[2]*q[2] + q[3]*q[3])
	if n == 0 {
		return [4]float64{1, 0, 0, 0}, 1
	}
	inv := 1 / n
	return [4]float64{q[0] * inv, q[1] * inv, q[2] * inv, q[3] * inv}, n
}

// quatToRot converts a unit quaternion [w, x, y, z] to a rotation matrix.
func quatToRot(q [4]float64) mat3 {
	w, x, y, z := q[0], q[1], q[2], q[3]
	return mat3{
		{1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y)},
		{2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x)},
		{2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y)},
	}
}

// quatToRotVJP maps a gradient with respect to the rotation matrix back to a
// gradient with respect to the unit quaternion, by contracting vR against
// the partial derivative of each matrix entry.
func quatToRotVJP(q [4]float64, vR mat3) [4]float64 {
	w, x, y, z := q[0], q[1], q[2], q[3]
	dot := func(d mat3) float64 {
		s := 0.0
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				s += d[i][j] * vR[i][j]
			}
		}
		return 2 * s
	}
	dw := mat3{{0, -z, y}, {z, 0, -x}, {-y, x, 0}}
	dx := mat3{{0, y, z}, {y, -2 * x, -w}, {z, w, -2 * x}}
	dy := mat3{{-2 * y, x, w}, {x, 0, z}, {-w, z, -2 * y}}
	dz := mat3{{-2 * z, -w, x}, {w, -2 * z, y}, {x, y, 0}}
	return [4]float64{dot(dw), dot(dx), dot(dy), dot(dz)}
}

// normalizeQuatVJP backpropagates a unit-quaternion gradient through the
// normalization qn = q/|q|.
func normalizeQuatVJP(qn [4]float64, norm float64, vQn [4]float64) [4]float64 {
	d := qn[0]*vQn[0] + qn[1]*vQn[1] + qn[2]*vQn[2] + qn[3]*vQn[3]
	inv := 1 / norm
	return [4]float64{
		(vQn[0] - qn[0]*d) * inv,
		(vQn[1] - qn[1]*d) * inv,
		(vQn[2] - qn[2]*d) * inv,
		(vQn[3] - qn[3]*d) * inv,
	}
}

// scaleRotToCov3D composes the world-space covariance V = M·Mᵀ from the
// factor M = R·diag(globScale·scale). It returns M and the upper triangle
// of V as {xx, xy, xz, yy, yz, zz}.
func scaleRotToCov3D(scale vec3, globScale float64, r mat3) (m mat3, cov [6]float64) {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m[i][j] = r[i][j] * scale[j] * globScale
		}
	}
	row := func(i, j int) float64 {
		return m[i][0]*m[j][0] + m[i][1]*m[j][1] + m[i][2]*m[j][2]
	}
	cov = [6]float64{row(0, 0), row(0, 1), row(0, 2), row(1, 1), row(1, 2), row(2, 2)}
	return m, cov
}

// scaleRotToCov3DVJP maps a gradient on the upper-triangular covariance back
// to gradients on scale and on the rotation matrix. The symmetric gradient
// matrix puts half of each off-diagonal entry on both sides; v_M = 2·v_V·M.
func scaleRotToCov3DVJP(scale vec3, globScale float64, r mat3, vCov [6]float64) (vScale vec3, vR mat3) {
	vV := mat3{
		{vCov[0], 0.5 * vCov[1], 0.5 * vCov[2]},
		{0.5 * vCov[1], vCov[3], 0.5 * vCov[4]},
		{0.5 * vCov[2], 0.5 * vCov[4], vCov[5]},
	}
	m, _ := scaleRotToCov3D(scale, globScale, r)
	var vM mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			vM[i][j] = 2 * (vV[i][0]*m[0][j] + vV[i][1]*m[1][j] + vV[i][2]*m[2][j])
		}
	}
	for j := 0; j < 3; j++ {
		vScale[j] = (r[0][j]*vM[0][j] + r[1][j]*vM[1][j] + r[2][j]*vM[2][j]) * globScale
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			vR[i][j] = vM[i][j] * scale[j] * globScale
		}
	}
	return vScale, vR
}

// ewaJacobian returns the Jacobian of the perspective projection at the
// clamped view-space point t, as the top two rows of a 3x3 matrix.
func ewaJacobian(fx, fy float64, t vec3) mat3 {
	rz := 1 / t[2]
	rz2 := rz * rz
	return mat3{
		{fx * rz, 0, -fx * t[0] * rz2},
		{0, fy * rz, -fy * t[1] * rz2},
		{0, 0, 0},
	}
}

// projectCov3D maps the world covariance through T = J·W and returns the 2D
// covariance (a, b, c) = (xx, xy, yy) with the low-pass blur added, plus the
// antialiasing compensation factor sqrt(det(cov)/det(cov + blur)).
func projectCov3D(cov3 [6]float64, t vec3, fx, fy float64, w mat3) (a, b, c, comp float64) {
	j := ewaJacobian(fx, fy, t)
	tm := mul3(j, w)
	v := mat3{
		{cov3[0], cov3[1], cov3[2]},
		{cov3[1], cov3[3], cov3[4]},
		{cov3[2], cov3[4], cov3[5]},
	}
	tv := mul3(tm, v)
	// Only the upper-left 2x2 of T·V·Tᵀ is needed.
	a = tv[0][0]*tm[0][0] + tv[0][1]*tm[0][1] + tv[0][2]*tm[0][2]
	b = tv[0][0]*tm[1][0] + tv[0][1]*tm[1][1] + tv[0][2]*tm[1][2]
	c = tv[1][0]*tm[1][0] + tv[1][1]*tm[1][1] + tv[1][2]*tm[1][2]

	detOrig := a*c - b*b
	a += covBlur
	c += covBlur
	detBlur := a*c - b*b
	comp = 0
	if detBlur > 0 {
		comp = math.Sqrt(math.Max(0, detOrig/detBlur))
	}
	return a, b, c, comp
}

// projectCov3DVJP backpropagates gradients on the blurred 2D covariance to
// the world covariance and the clamped view-space point. clipX and clipY
// report whether the point was clamped on that axis during the forward pass;
// a clamped coordinate receives zero gradient.
func projectCov3DVJP(cov3 [6]float64, t vec3, fx, fy float64, w mat3, va, vb, vc float64, clipX, clipY bool) (vCov3 [6]float64, vT vec3) {
	j := ewaJacobian(fx, fy, t)
	tm := mul3(j, w)
	v := mat3{
		{cov3[0], cov3[1], cov3[2]},
		{cov3[1], cov3[3], cov3[4]},
		{cov3[2], cov3[4], cov3[5]},
	}
	vCov := mat3{
		{va, 0.5 * vb, 0},
		{0.5 * vb, vc, 0},
		{0, 0, 0},
	}

	// v_V = Tᵀ · v_cov · T, folded to the upper triangle with off-diagonal
	// entries doubled.
	tvc := mul3(transpose3(tm), vCov)
	vV := mul3(tvc, tm)
	vCov3 = [6]float64{
		vV[0][0],
		vV[0][1] + vV[1][0],
		vV[0][2] + vV[2][0],
		vV[1][1],
		vV[1][2] + vV[2][1],
		vV[2][2],
	}

	// v_T = v_cov·T·Vᵀ + v_covᵀ·T·V; V is symmetric so the transposes
	// collapse onto the same product.
	tvSym := mul3(tm, v)
	vTm := mul3(vCov, tvSym)
	vTmT := mul3(transpose3(vCov), tvSym)
	for i := 0; i < 3; i++ {
		for k := 0; k < 3; k++ {
			vTm[i][k] += vTmT[i][k]
		}
	}
	vJ := mul3(vTm, transpose3(w))

	rz := 1 / t[2]
	rz2 := rz * rz
	rz3 := rz2 * rz
	if !clipX {
		vT[0] = -fx * rz2 * vJ[0][2]
	}
	if !clipY {
		vT[1] = -fy * rz2 * vJ[1][2]
	}
	vT[2] = -fx*rz2*vJ[0][0] + 2*fx*t[0]*rz3*vJ[0][2] -
		fy*rz2*vJ[1][1] + 2*fy*t[1]*rz3*vJ[1][2]
	return vCov3, vT
}

// conicFromCov2D inverts the 2D covariance. ok is false when the covariance
// is degenerate, in which case the primitive is culled.
func conicFromCov2D(a, b, c float64) (conic [3]float64, det float64, ok bool) {
	det = a*c - b*b
	if det == 0 {
		return conic, det, false
	}
	inv := 1 / det
	return [3]float64{c * inv, -b * inv, a * inv}, det, true
}

// radiusFromCov2D bounds the footprint at three standard deviations along
// the major axis of the 2D covariance.
func radiusFromCov2D(a, b, c, det float64) int32 {
	mid := 0.5 * (a + c)
	d := math.Sqrt(math.Max(0.1, mid*mid-det))
	v1 := mid + d
	v2 := mid - d
	return int32(math.Ceil(3 * math.Sqrt(math.Max(v1, v2))))
}

// cov2DToConicVJP maps a conic gradient back to the blurred 2D covariance
// via v_Σ = -Σ⁻¹·G·Σ⁻¹ with the off-diagonal gradient shared across both
// symmetric slots.
func cov2DToConicVJP(conic [3]float64, vConic [3]float64) (va, vb, vc float64) {
	x0, x1, x2 := conic[0], conic[1], conic[2]
	g0, g1, g2 := vConic[0], vConic[1], vConic[2]
	// X·G
	m00 := x0*g0 + x1*g1
	m01 := x0*g1 + x1*g2
	m10 := x1*g0 + x2*g1
	m11 := x1*g1 + x2*g2
	// -(X·G)·X
	va = -(m00*x0 + m01*x1)
	s01 := -(m00*x1 + m01*x2)
	s10 := -(m10*x0 + m11*x1)
	vc = -(m10*x1 + m11*x2)
	vb = s01 + s10
	return va, vb, vc
}

// compensationVJP adds the gradient of comp = sqrt(detOrig/detBlur) with
// respect to the blurred covariance entries (a, b, c). Degenerate factors
// contribute nothing.
func compensationVJP(a, b, c, comp, vComp float64) (va, vb, vc float64) {
	if comp <= 0 || vComp == 0 {
		return 0, 0, 0
	}
	detBlur := a*c - b*b
	detOrig := (a-covBlur)*(c-covBlur) - b*b
	if detBlur <= 0 {
		return 0, 0, 0
	}
	denom := 1 / (2 * comp * detBlur * detBlur)
	va = ((c-covBlur)*detBlur - detOrig*c) * denom * vComp
	vc = ((a-covBlur)*detBlur - detOrig*a) * denom * vComp
	vb = 2 * b * (detOrig - detBlur) * denom * vComp
	return va, vb, vc
}
