package http

import "errors"

var errNotANumber = errors.New("http: invalid number")

// atoi64 parses a non-negative base-10 integer and fails on overflow.
func atoi64(b []byte) (int64, error) {
	if len(b) == 0 {
		return 0, errNotANumber
	}
	var n int64
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, errNotANumber
		}
		d := int64(c - '0')
		if n > (1<<63-1-d)/10 {
			return 0, errNotANumber
		}
		n = n*10 + d
	}
	return n, nil
}

// writeHexToBuffer writes n in lowercase hex and returns the digit count.
// Used by the chunked writer for chunk-size framing.
func writeHexToBuffer(n int, buf []byte) int {
	if n == 0 {
		buf[0] = '0'
		return 1
	}

	const hexDigits = "0123456789abcdef"
	digits := 0
	temp := n
	for temp > 0 {
		digits++
		temp >>= 4
	}

	for i := digits - 1; i >= 0; i-- {
		buf[i] = hexDigits[n&0xF]
		n >>= 4
	}

	return digits
}

func toLowerASCII(data []byte) {
	for i := range data {
		if data[i] >= 'A' && data[i] <= 'Z' {
			data[i] += 'a' - 'A'
		}
	}
}

func lowerByte(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		c += 'a' - 'A'
	}
	return c
}

// equalFoldASCII reports b == s ignoring ASCII case.
func equalFoldASCII(b []byte, s string) bool {
	if len(b) != len(s) {
		return false
	}
	for i := 0; i < len(b); i++ {
		if lowerByte(b[i]) != lowerByte(s[i]) {
			return false
		}
	}
	return true
}

// containsFoldASCII reports whether s contains sub ignoring ASCII case.
func containsFoldASCII(s, sub string) bool {
	if len(sub) == 0 {
		return true
	}
	if len(sub) > len(s) {
		return false
	}
	for i := 0; i <= len(s)-len(sub); i++ {
		match := true
		for j := 0; j < len(sub); j++ {
			if lowerByte(s[i+j]) != lowerByte(sub[j]) {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func trimSpace(b []byte) []byte {
	start := 0
	for start < len(b) && (b[start] == ' ' || b[start] == '\t') {
		start++
	}
	end := len(b)
	for end > start && (b[end-1] == ' ' || b[end-1] == '\t') {
		end--
	}
	return b[start:end]
}
