package api

import (
	"io"
	"log/slog"
)

var testMagic = [8]byte{'M', 'A', 'G', 'I', 'C', 0, 0, 0}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
