package domain

import "time"

// SystemClock usa o relógio real do processo
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
