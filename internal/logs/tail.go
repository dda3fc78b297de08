package logs

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"tipflow/internal/logging"
)

const pollInterval = 250 * time.Millisecond

// Filter reports whether a raw log line should be emitted.
type Filter func(line string) bool

// TailOptions controls Tail.
type TailOptions struct {
	// Lines is the number of trailing records to print first; zero prints
	// none and starts at the end of the file.
	Lines  int
	Follow bool
	Filter Filter
}

// Tail writes matching lines from path to emit. It returns when the backlog
// is printed, or when ctx ends in follow mode.
func Tail(ctx context.Context, path string, opts TailOptions, emit func(string)) error {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && opts.Follow {
			if file, err = waitForFile(ctx, path); err != nil {
				return err
			}
		} else {
			return fmt.Errorf("open log file: %w", err)
		}
	}
	defer file.Close()

	if err := emitLast(file, opts.Lines, opts.Filter, emit); err != nil {
		return err
	}
	if !opts.Follow {
		return nil
	}

	reader := bufio.NewReader(file)
	var partial strings.Builder
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		chunk, err := reader.ReadString('\n')
		partial.WriteString(chunk)
		if err == nil {
			line := strings.TrimRight(partial.String(), "\r\n")
			partial.Reset()
			if opts.Filter == nil || opts.Filter(line) {
				emit(line)
			}
			continue
		}
		if !errors.Is(err, io.EOF) {
			return fmt.Errorf("read log file: %w", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// emitLast prints the final limit matching lines and leaves file positioned
// at its end.
func emitLast(file *os.File, limit int, filter Filter, emit func(string)) error {
	if limit <= 0 {
		_, err := file.Seek(0, io.SeekEnd)
		return err
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	ring := make([]string, limit)
	count, idx := 0, 0
	for scanner.Scan() {
		line := scanner.Text()
		if filter != nil && !filter(line) {
			continue
		}
		ring[idx] = line
		idx = (idx + 1) % limit
		if count < limit {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read log file: %w", err)
	}
	start := 0
	if count == limit {
		start = idx
	}
	for i := 0; i < count; i++ {
		emit(ring[(start+i)%limit])
	}
	_, err := file.Seek(0, io.SeekEnd)
	return err
}

func waitForFile(ctx context.Context, path string) (*os.File, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		file, err := os.Open(path)
		if err == nil {
			return file, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunFilter matches JSON records whose run id starts with prefix.
func RunFilter(prefix string) Filter {
	prefix = strings.TrimSpace(prefix)
	return func(line string) bool {
		var record map[string]any
		if json.Unmarshal([]byte(line), &record) != nil {
			return false
		}
		id, _ := record[logging.FieldRunID].(string)
		return id != "" && strings.HasPrefix(id, prefix)
	}
}

// LevelFilter matches JSON records at or above level.
func LevelFilter(level string) Filter {
	minimum := logging.ParseLevel(level)
	return func(line string) bool {
		var record struct {
			Level string `json:"level"`
		}
		if json.Unmarshal([]byte(line), &record) != nil {
			return false
		}
		return logging.ParseLevel(record.Level) >= minimum
	}
}

// All combines filters; a nil entry matches everything.
func All(filters ...Filter) Filter {
	return func(line string) bool {
		for _, f := range filters {
			if f != nil && !f(line) {
				return false
			}
		}
		return true
	}
}
