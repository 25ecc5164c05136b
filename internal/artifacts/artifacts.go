// Package artifacts writes the forensic files a claim attempt leaves in the
// workspace: a JSON receipt for each broadcast transaction and a plain-text
// diagnostic for each failure.
package artifacts

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aatumaykin/autoclaim/internal/chain"
	"github.com/aatumaykin/autoclaim/internal/constants"
	"github.com/aatumaykin/autoclaim/internal/logger"
)

// maxNameCollisions bounds how far a filename timestamp is bumped when two
// artifacts land in the same millisecond.
const maxNameCollisions = 1000

// Writer creates artifact files in one directory.
type Writer struct {
	dir    string
	now    func() time.Time
	logger *logger.Logger
}

// NewWriter creates a Writer for dir.
func NewWriter(dir string, log *logger.Logger) *Writer {
	return &Writer{dir: dir, now: time.Now, logger: log}
}

// WithClock overrides the clock used for filenames.
func (w *Writer) WithClock(now func() time.Time) *Writer {
	w.now = now
	return w
}

// Receipt is the content of a receipt file.
type Receipt struct {
	AttemptID     string          `json:"attempt_id"`
	Program       string          `json:"program"`
	Account       string          `json:"account"`
	TransactionID string          `json:"transaction_id"`
	BlockNum      uint32          `json:"block_num,omitempty"`
	Endpoint      string          `json:"endpoint,omitempty"`
	SubmittedAt   time.Time       `json:"submitted_at"`
	Processed     json.RawMessage `json:"processed,omitempty"`
}

// NewReceipt builds a receipt from a node acknowledgement.
func NewReceipt(attemptID, program, account, endpoint string, res *chain.TxResult, at time.Time) Receipt {
	return Receipt{
		AttemptID:     attemptID,
		Program:       program,
		Account:       account,
		TransactionID: res.TransactionID,
		BlockNum:      res.BlockNum,
		Endpoint:      endpoint,
		SubmittedAt:   at.UTC(),
		Processed:     res.Processed,
	}
}

// WriteReceipt writes autoclaim-trx-log_<ms>.txt and returns its path.
func (w *Writer) WriteReceipt(r Receipt) (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("failed to marshal receipt: %w", err)
	}
	path, err := w.create(constants.ReceiptFilePrefix, data)
	if err != nil {
		return "", err
	}
	w.logger.Debug("receipt written",
		logger.Field{Key: "file", Value: path},
		logger.Field{Key: "tx", Value: r.TransactionID})
	return path, nil
}

// Diagnostic describes a failed attempt.
type Diagnostic struct {
	AttemptID string
	Program   string
	Account   string
	Stage     string
	Reason    string
	Err       error
	At        time.Time
}

func (d Diagnostic) render() []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "time: %s\n", d.At.UTC().Format(time.RFC3339))
	if d.AttemptID != "" {
		fmt.Fprintf(&b, "attempt: %s\n", d.AttemptID)
	}
	fmt.Fprintf(&b, "program: %s\n", d.Program)
	fmt.Fprintf(&b, "account: %s\n", d.Account)
	if d.Stage != "" {
		fmt.Fprintf(&b, "stage: %s\n", d.Stage)
	}
	if d.Reason != "" {
		fmt.Fprintf(&b, "reason: %s\n", d.Reason)
	}
	if d.Err != nil {
		fmt.Fprintf(&b, "error: %v\n", d.Err)
		var appErr *chain.ApplicationError
		if errors.As(d.Err, &appErr) {
			fmt.Fprintf(&b, "domain: %s\ncode: %d\nname: %s\n", appErr.Domain, appErr.Code, appErr.Name)
		}
	}
	return []byte(b.String())
}

// WriteDiagnostic writes autoclaim-error_<ms>.txt and returns its path.
func (w *Writer) WriteDiagnostic(d Diagnostic) (string, error) {
	if d.At.IsZero() {
		d.At = w.now()
	}
	path, err := w.create(constants.DiagnosticFilePrefix, d.render())
	if err != nil {
		return "", err
	}
	w.logger.Debug("diagnostic written", logger.Field{Key: "file", Value: path})
	return path, nil
}

// create writes data to <prefix><ms>.txt, never overwriting an existing
// artifact.
func (w *Writer) create(prefix string, data []byte) (string, error) {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create artifact directory %s: %w", w.dir, err)
	}

	ms := w.now().UnixMilli()
	for i := 0; i < maxNameCollisions; i++ {
		path := filepath.Join(w.dir, prefix+strconv.FormatInt(ms+int64(i), 10)+".txt")
		file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create artifact %s: %w", path, err)
		}
		if _, err := file.Write(data); err != nil {
			file.Close()
			return "", fmt.Errorf("failed to write artifact %s: %w", path, err)
		}
		if err := file.Close(); err != nil {
			return "", fmt.Errorf("failed to close artifact %s: %w", path, err)
		}
		return path, nil
	}
	return "", fmt.Errorf("no free artifact name for %s%d", prefix, ms)
}
