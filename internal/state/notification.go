package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DateLayout is the canonical format of Notification.SendDate.
const DateLayout = "2006-01-02"

// Notification is a text pushed to a user at the scheduled slots of one day.
type Notification struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	SendDate string `json:"send_date"`
	Content  string `json:"content"`
}

// NotificationStore is a JSON-file-backed store for notifications.
type NotificationStore struct {
	path string
	mu   sync.RWMutex
}

// NewNotificationStore creates a file-backed store at the given path.
func NewNotificationStore(path string) *NotificationStore {
	return &NotificationStore{path: path}
}

// Path returns the file path used by this store.
func (s *NotificationStore) Path() string {
	return s.path
}

// List returns all notifications. Returns an empty slice if the file doesn't exist.
func (s *NotificationStore) List() ([]*Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items, err := s.load()
	if err != nil {
		return nil, err
	}
	if items == nil {
		return []*Notification{}, nil
	}
	return items, nil
}

// DueOn returns the notifications whose send date is day. Rows with a
// missing user or content are skipped.
func (s *NotificationStore) DueOn(day time.Time) ([]*Notification, error) {
	items, err := s.List()
	if err != nil {
		return nil, err
	}
	want := day.Format(DateLayout)
	var due []*Notification
	for _, n := range items {
		if n.SendDate == want && strings.TrimSpace(n.UserID) != "" && strings.TrimSpace(n.Content) != "" {
			due = append(due, n)
		}
	}
	return due, nil
}

// Add validates n, normalizes its date, assigns an id and stores it.
func (s *NotificationStore) Add(n *Notification) error {
	n.UserID = strings.TrimSpace(n.UserID)
	n.Content = strings.TrimSpace(n.Content)
	if n.UserID == "" {
		return fmt.Errorf("notification user id is required")
	}
	if n.Content == "" {
		return fmt.Errorf("notification content is required")
	}
	day, err := ParseDate(n.SendDate)
	if err != nil {
		return err
	}
	n.SendDate = day.Format(DateLayout)
	if n.ID == "" {
		n.ID = uuid.NewString()[:8]
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load()
	if err != nil {
		return err
	}
	for _, existing := range items {
		if existing.ID == n.ID {
			return fmt.Errorf("notification already exists: %s", n.ID)
		}
	}

	items = append(items, n)
	return s.save(items)
}

// Remove deletes a notification by id. Returns an error if not found.
func (s *NotificationStore) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load()
	if err != nil {
		return err
	}

	for i, n := range items {
		if n.ID == id {
			items = append(items[:i], items[i+1:]...)
			return s.save(items)
		}
	}
	return fmt.Errorf("notification not found: %s", id)
}

var dateLayouts = []string{DateLayout, "02/01/2006", "2/1/2006", "02-01-2006", "2006/01/02"}

// ParseDate accepts ISO dates and day-first dates such as 14/10/2026.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid send date %q", s)
}

// load reads the JSON file. Returns nil if the file doesn't exist.
func (s *NotificationStore) load() ([]*Notification, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read notifications file: %w", err)
	}

	var items []*Notification
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("unmarshal notifications: %w", err)
	}
	return items, nil
}

// save writes the list to disk using atomic write (temp file + rename).
func (s *NotificationStore) save(items []*Notification) error {
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal notifications: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create notifications dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp notifications file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp notifications file: %w", err)
	}
	return nil
}
