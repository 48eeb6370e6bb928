package main

import "time"

// Helper functions for the narrow integer arithmetic used by the window
func minInt8(a, b int8) int8 {
	if b < a {
		return b
	}
	return a
}

func maxInt8(a, b int8) int8 {
	if b > a {
		return b
	}
	return a
}

// truncatingAverage divides toward zero, so the mean of an int8 run always
// fits back in an int8
func truncatingAverage(sum int32, count uint16) int8 {
	if count == 0 {
		return 0
	}
	return int8(sum / int32(count))
}

func absDiff(a, b int8) int {
	d := int(a) - int(b)
	if d < 0 {
		return -d
	}
	return d
}

// Convert duration to milliseconds for logging
func durationToMillis(d time.Duration) int64 {
	return d.Milliseconds()
}
