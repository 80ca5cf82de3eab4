// Package output provides the interface, configuration and implementations
// for deliverers that hand processed data to its consumers.
package output

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Deliverer defines the interface for everything that is responsible for
// handing a packaged run to a specific destination.
type Deliverer interface {
	Deliver(ctx context.Context, d *Delivery) error
}

// DeliveryConfig defines the necessary parameters to make a new deliverer.
type DeliveryConfig struct {
	Type    DeliveryType `yaml:"type" env:"DELIVERY_TYPE" env-default:"slack"`
	Token   string       `yaml:"token" env:"SLACKBOT_API_TOKEN"` // we want to be able to pass credentials via env vars
	Channel string       `yaml:"channel" env:"SLACK_CHANNEL" env-default:"#xyla-devs"`
	Dir     string       `yaml:"dir" env:"DELIVERY_DIR"`
}

func (dc *DeliveryConfig) Validate() error {
	switch dc.Type {
	case SLACK_DELIVERY_TYPE:
		if dc.Token == "" {
			return errors.New("delivery token needs to be specified for slack delivery")
		}
		if dc.Channel == "" {
			return errors.New("delivery channel needs to be specified for slack delivery")
		}
	case FILE_DELIVERY_TYPE:
		if dc.Dir == "" {
			return errors.New("delivery dir needs to be specified for file delivery")
		}
	case STDOUT_DELIVERY_TYPE:
	default:
		return fmt.Errorf("delivery of type '%s' not implemented", dc.Type)
	}
	return nil
}

// DeliveryType encapsulates the type of a deliverer.
// See below constants for possible types
type DeliveryType string

const (
	STDOUT_DELIVERY_TYPE DeliveryType = "stdout"
	FILE_DELIVERY_TYPE   DeliveryType = "file"
	SLACK_DELIVERY_TYPE  DeliveryType = "slack"
)

// NewDeliverer returns a new deliverer depending on the delivery type
func NewDeliverer(dc *DeliveryConfig) (Deliverer, error) {
	if err := dc.Validate(); err != nil {
		return nil, err
	}
	switch dc.Type {
	case STDOUT_DELIVERY_TYPE:
		return NewStdoutDeliverer(dc), nil
	case FILE_DELIVERY_TYPE:
		return NewFileDeliverer(dc)
	default:
		return NewSlackDeliverer(dc), nil
	}
}

// Delivery is one packaged run.
type Delivery struct {
	Organization string
	AppID        string
	MinDate      time.Time
	MaxDate      time.Time
	// Archive is the path of the zip file holding the processed tables.
	Archive string
}

// Summary is the message sent along with the archive.
func (d *Delivery) Summary() string {
	return fmt.Sprintf("*Client:* %s\n*App ID:* `%s`\n*Dates:* `%s` - `%s`\n",
		d.Organization, d.AppID, d.MinDate.Format(time.DateOnly), d.MaxDate.Format(time.DateOnly))
}

// FileName is the name the archive is delivered under.
func (d *Delivery) FileName() string {
	return fmt.Sprintf("%s_%s-%s.zip", d.AppID, d.MinDate.Format(time.DateOnly), d.MaxDate.Format(time.DateOnly))
}
