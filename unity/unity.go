package unity

import (
	"errors"

	"github.com/sasha-s/go-deadlock"
)

type Ref struct {
	FileID int64  `yaml:"fileID"`
	GUID   string `yaml:"guid"`
	Type   int    `yaml:"type"`
}

func (r *Ref) IsValid() bool {
	return r != nil && r.FileID != 0
}

// ErrorList collects per-item failures from concurrent tasks.
type ErrorList struct {
	mutex deadlock.Mutex
	errs  []error
}

func (l *ErrorList) Add(err error) {
	if err == nil {
		return
	}
	l.mutex.Lock()
	l.errs = append(l.errs, err)
	l.mutex.Unlock()
}

func (l *ErrorList) Len() int {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return len(l.errs)
}

func (l *ErrorList) Errors() []error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return append([]error(nil), l.errs...)
}

// Err joins all collected errors, nil when empty.
func (l *ErrorList) Err() error {
	return errors.Join(l.Errors()...)
}
