package decode

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"tick-catalog/internal/model"
)

// Schema-level metadata keys carried by every quote file.
const (
	KeyInstrumentID   = "instrument_id"
	KeyPricePrecision = "price_precision"
	KeySizePrecision  = "size_precision"
)

// ErrMetadata marks missing or unparseable schema metadata.
var ErrMetadata = errors.New("schema metadata")

// Metadata holds the per-file constants applied to every decoded row.
type Metadata struct {
	InstrumentID   string
	PricePrecision uint8
	SizePrecision  uint8
}

// KeyValues renders md as the key/value map written into file metadata.
func (md Metadata) KeyValues() map[string]string {
	return map[string]string{
		KeyInstrumentID:   md.InstrumentID,
		KeyPricePrecision: strconv.Itoa(int(md.PricePrecision)),
		KeySizePrecision:  strconv.Itoa(int(md.SizePrecision)),
	}
}

// ParseMetadata extracts Metadata from a file's key/value metadata.
func ParseMetadata(kv map[string]string) (Metadata, error) {
	var md Metadata
	id, ok := kv[KeyInstrumentID]
	if !ok || strings.TrimSpace(id) == "" {
		return md, fmt.Errorf("%w: %s missing", ErrMetadata, KeyInstrumentID)
	}
	md.InstrumentID = strings.TrimSpace(id)

	var err error
	if md.PricePrecision, err = parsePrecision(kv, KeyPricePrecision); err != nil {
		return md, err
	}
	if md.SizePrecision, err = parsePrecision(kv, KeySizePrecision); err != nil {
		return md, err
	}
	return md, nil
}

func parsePrecision(kv map[string]string, key string) (uint8, error) {
	s, ok := kv[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s missing", ErrMetadata, key)
	}
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q: %v", ErrMetadata, key, s, err)
	}
	if v > model.MaxPrecision {
		return 0, fmt.Errorf("%w: %s=%d exceeds max precision %d", ErrMetadata, key, v, model.MaxPrecision)
	}
	return uint8(v), nil
}
