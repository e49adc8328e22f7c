package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zlib"
)

// Encode marshals v to JSON and compresses it with zlib.
func Encode(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode reverses Encode into v.
func Decode(data []byte, v any) error {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decompress: %w", err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return fmt.Errorf("decompress: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	return nil
}

// GetJSON reads and decodes a cached value. A value that fails to decode is
// reported as an error, not as a hit.
func GetJSON[T any](ctx context.Context, c Cache, key string) (T, bool, error) {
	var zero T

	data, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return zero, false, err
	}

	var v T
	if err := Decode(data, &v); err != nil {
		return zero, false, err
	}
	return v, true, nil
}

// SetJSON encodes and stores v.
func SetJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) error {
	data, err := Encode(v)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, data, ttl)
}
