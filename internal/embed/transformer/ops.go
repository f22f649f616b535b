package transformer

import "math"

// StandardMaxTokens and RotaryMaxTokens mirror the context limits
// named in embed.StandardMaxTokens / embed.RotaryMaxTokens; duplicated
// here (rather than imported) to keep this package free of a reverse
// dependency on internal/embed.
const (
	StandardMaxTokens = 512
	RotaryMaxTokens    = 8192

	// QueryPrefix is prepended to queries sent to the rotary encoder,
	// matching its training-time query/document asymmetry.
	QueryPrefix = "search_query: "
)

func sqrtF(f float64) float64 { return math.Sqrt(f) }

// matVec computes W·x for a row-major weight matrix W of shape
// (outDim, inDim) flattened into a single slice.
func matVec(w []float32, outDim, inDim int, x []float32, bias []float32) []float32 {
	out := make([]float32, outDim)
	for o := 0; o < outDim; o++ {
		var sum float32
		row := w[o*inDim : o*inDim+inDim]
		for i, v := range row {
			sum += v * x[i]
		}
		if bias != nil {
			sum += bias[o]
		}
		out[o] = sum
	}
	return out
}

// layerNorm normalizes x to zero mean / unit variance, then applies a
// learned per-element scale and shift.
func layerNorm(x []float32, gamma, beta []float32, eps float32) []float32 {
	n := len(x)
	var mean float64
	for _, v := range x {
		mean += float64(v)
	}
	mean /= float64(n)

	var variance float64
	for _, v := range x {
		d := float64(v) - mean
		variance += d * d
	}
	variance /= float64(n)

	inv := 1.0 / math.Sqrt(variance+float64(eps))
	out := make([]float32, n)
	for i, v := range x {
		norm := (float64(v) - mean) * inv
		out[i] = float32(norm)*gamma[i] + beta[i]
	}
	return out
}

// softmax applies the softmax function in place over a numerically
// stable shifted-exponential.
func softmax(x []float32) {
	if len(x) == 0 {
		return
	}
	max := x[0]
	for _, v := range x[1:] {
		if v > max {
			max = v
		}
	}
	var sum float32
	for i, v := range x {
		e := float32(math.Exp(float64(v - max)))
		x[i] = e
		sum += e
	}
	if sum == 0 {
		return
	}
	for i := range x {
		x[i] /= sum
	}
}

// gelu applies the Gaussian Error Linear Unit activation.
func gelu(x float32) float32 {
	xf := float64(x)
	return float32(0.5 * xf * (1 + math.Tanh(math.Sqrt(2/math.Pi)*(xf+0.044715*xf*xf*xf))))
}

// silu applies the SiLU (Sigmoid Linear Unit, a.k.a. swish) activation
// used by the SwiGLU feed-forward gate.
func silu(x float32) float32 {
	xf := float64(x)
	return float32(xf / (1 + math.Exp(-xf)))
}

// addVec returns a+b element-wise.
func addVec(a, b []float32) []float32 {
	out := make([]float32, len(a))
	for i := range a {
		out[i] = a[i] + b[i]
	}
	return out
}

// applyRotary rotates the first rotaryDims elements of a per-head
// query/key vector in consecutive (even, odd) pairs by an angle
// derived from the token position, the remainder passing through
// unrotated.
func applyRotary(vec []float32, position int, rotaryDims int) []float32 {
	if rotaryDims <= 0 {
		return vec
	}
	out := make([]float32, len(vec))
	copy(out, vec)

	for i := 0; i < rotaryDims; i += 2 {
		if i+1 >= rotaryDims {
			break
		}
		freq := 1.0 / math.Pow(10000, float64(i)/float64(rotaryDims))
		angle := float64(position) * freq
		sinA, cosA := math.Sincos(angle)

		x0, x1 := float64(vec[i]), float64(vec[i+1])
		out[i] = float32(x0*cosA - x1*sinA)
		out[i+1] = float32(x0*sinA + x1*cosA)
	}
	return out
}

// maskedMeanPool computes the attention-mask-weighted mean over the
// sequence dimension: sum(h·mask) / sum(mask). Falls back to a zero
// vector if the mask is entirely zero.
func maskedMeanPool(hidden [][]float32, mask []int32, hiddenSize int) []float32 {
	sum := make([]float32, hiddenSize)
	var count float32
	for t, m := range mask {
		if m == 0 {
			continue
		}
		count++
		for d := 0; d < hiddenSize; d++ {
			sum[d] += hidden[t][d]
		}
	}
	if count == 0 {
		return sum
	}
	for d := range sum {
		sum[d] /= count
	}
	return sum
}

// l2Normalize L2-normalizes v in place.
func l2Normalize(v []float32) []float32 {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares == 0 {
		return v
	}
	inv := 1.0 / math.Sqrt(sumSquares)
	for i, x := range v {
		v[i] = float32(float64(x) * inv)
	}
	return v
}
