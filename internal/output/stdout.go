package output

import (
	"context"
	"fmt"
	"io"
	"os"
)

// StdoutDeliverer prints the summary and the archive location.
type StdoutDeliverer struct {
	out io.Writer
}

func NewStdoutDeliverer(dc *DeliveryConfig) *StdoutDeliverer {
	return &StdoutDeliverer{out: os.Stdout}
}

func (sd *StdoutDeliverer) Deliver(ctx context.Context, d *Delivery) error {
	_, err := fmt.Fprintf(sd.out, "%s*Archive:* %s\n", d.Summary(), d.Archive)
	return err
}
