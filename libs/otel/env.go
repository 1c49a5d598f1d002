package otelx

import "os"

// Swapped out in tests.
var lookupEnv = os.LookupEnv
