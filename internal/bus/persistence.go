package bus

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// JournalEntry is one line of the event journal.
type JournalEntry struct {
	Event     Event     `json:"event"`
	Topic     string    `json:"topic"`
	Timestamp time.Time `json:"timestamp"`
}

// Journal appends events to a JSON-lines file.
type Journal struct {
	path    string
	mu      sync.Mutex
	file    *os.File
	encoder *json.Encoder
}

// OpenJournal opens (or creates) the journal at path for appending.
func OpenJournal(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating journal directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}

	return &Journal{
		path:    path,
		file:    file,
		encoder: json.NewEncoder(file),
	}, nil
}

// Append writes one event.
func (j *Journal) Append(topic string, event Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file == nil {
		return fmt.Errorf("journal %s is closed", j.path)
	}

	entry := JournalEntry{Event: event, Topic: topic, Timestamp: time.Now()}
	if err := j.encoder.Encode(entry); err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	return j.file.Sync()
}

// Close closes the journal file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file == nil {
		return nil
	}
	err := j.file.Close()
	j.file = nil
	j.encoder = nil
	return err
}

// ReadJournal returns entries recorded after since, oldest first. A limit of
// zero or less returns all of them. Malformed lines are skipped.
func ReadJournal(path string, since time.Time, limit int) ([]JournalEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []JournalEntry{}, nil
		}
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	defer file.Close()

	const maxLine = 1 << 20
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), maxLine)

	entries := []JournalEntry{}
	for scanner.Scan() {
		var entry JournalEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		if !entry.Timestamp.After(since) {
			continue
		}
		entries = append(entries, entry)
		if limit > 0 && len(entries) >= limit {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading journal: %w", err)
	}

	return entries, nil
}
