package main

import "log"

// Reporter receives human-readable progress lines. It has no effect on
// control flow.
type Reporter func(format string, args ...any)

func logReporter() Reporter { return log.Printf }

func discardReporter() Reporter { return func(string, ...any) {} }
