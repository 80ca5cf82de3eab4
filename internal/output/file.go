package output

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xyla-io/bot-google-play/internal/log"
)

// FileDeliverer copies the archive into a local directory.
type FileDeliverer struct {
	*DeliveryConfig
}

// NewFileDeliverer returns a new FileDeliverer
func NewFileDeliverer(dc *DeliveryConfig) (*FileDeliverer, error) {
	if dc.Dir == "" {
		return nil, errors.New("dir needs to be specified for the FileDeliverer")
	}

	if err := os.MkdirAll(dc.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dc.Dir, err)
	}

	return &FileDeliverer{DeliveryConfig: dc}, nil
}

func (fd *FileDeliverer) Deliver(ctx context.Context, d *Delivery) error {
	logger := log.LoggerFromContext(ctx).With(slog.String("deliverer", string(FILE_DELIVERY_TYPE)))
	src, err := os.Open(d.Archive)
	if err != nil {
		return err
	}
	defer src.Close()

	target := filepath.Join(fd.Dir, d.FileName())
	dst, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("error while trying to open file: %w", err)
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("error while copying archive to %s: %w", target, err)
	}
	if err := os.WriteFile(target+".txt", []byte(d.Summary()), 0644); err != nil {
		return fmt.Errorf("error while writing summary: %w", err)
	}
	logger.Info(fmt.Sprintf("delivered %s to %s", d.Archive, target))
	return nil
}
