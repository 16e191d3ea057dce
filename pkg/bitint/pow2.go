// SPDX-License-Identifier: MIT
/*
Package bitint provides the power-of-2 helpers used to validate analysis
transform sizes and to size device buffers.

	// Round a requested device buffer up to something the FFT can use
	frames := bitint.NextPowerOfTwo(1000) // 1024

	// Reject analyser sizes the transform cannot handle
	ok := bitint.IsPowerOfTwo(512)

NextPowerOfTwo subtracts one before taking the bit length so that inputs
which already are powers of 2 map to themselves: 8-1 = 0b0111 has length 3
and 1<<3 = 8, whereas bits.Len(8) would be 4 and double the input.
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of 2 >= size. Non-positive
// sizes return 1.
//
//	Input  Output
//	4      4
//	5      8
//	0      1
//	-1     1
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of 2. Powers of 2 have
// exactly one bit set, so n&(n-1) clears it to zero.
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// Log2 returns log2(n) for a power of 2 n, or -1 if n is not one.
func Log2(n int) int {
	if !IsPowerOfTwo(n) {
		return -1
	}
	return bits.TrailingZeros(uint(n))
}
