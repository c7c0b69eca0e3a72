package util

import (
	"math"
	"math/rand"
	"time"
)

// Returns the current unix time in seconds
func EpochSeconds() float64 {
	return float64(time.Now().UnixNano()) / float64(1e9)
}

// Returns count/duration, or 0 when the duration is not positive
func Rate(count int, duration float64) float64 {
	if duration <= 0 {
		return 0
	}
	return float64(count) / duration
}

// Returns part/whole*100, or 0 when whole is not positive
func Percentage(part, whole int64) float64 {
	if whole <= 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

// Returns (value-base)/base*100, or 0 when base is not positive
func Overhead(value, base float64) float64 {
	if base <= 0 {
		return 0
	}
	return (value - base) / base * 100
}

// Rounds x to the given number of decimal places
func Round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}

const digits = "0123456789"

// Returns a random string of 'length' decimal digits
func RandomDigits(rng *rand.Rand, length int) string {
	var s = make([]byte, length)
	for i := 0; i < length; i++ {
		s[i] = digits[rng.Intn(len(digits))]
	}
	return string(s)
}
