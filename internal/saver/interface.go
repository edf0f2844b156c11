package saver

import (
	"strings"

	"tick-catalog/internal/model"
)

// PacketSaver persists one packet (a merged chunk) of quotes to a file.
// The drain loop only depends on this interface; main picks the implementation.
type PacketSaver interface {
	Save(quotes []model.QuoteTick, path string) error
	Extension() string
}

// NewPacketSaver creates implementation by format (csv, parquet, json).
// Returns nil if format not supported.
func NewPacketSaver(format string) PacketSaver {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "csv":
		return CSVSaver{}
	case "parquet":
		return ParquetSaver{}
	case "json":
		return JSONSaver{}
	default:
		return nil
	}
}
