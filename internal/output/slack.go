package output

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/slack-go/slack"
	"github.com/xyla-io/bot-google-play/internal/log"
)

// slackAPI is the part of the slack client the deliverer uses.
type slackAPI interface {
	UploadFileV2Context(ctx context.Context, params slack.UploadFileV2Parameters) (*slack.FileSummary, error)
	GetConversationsContext(ctx context.Context, params *slack.GetConversationsParameters) ([]slack.Channel, string, error)
}

// SlackDeliverer uploads the archive to a slack channel with the summary
// as the initial comment.
type SlackDeliverer struct {
	*DeliveryConfig
	api slackAPI
}

func NewSlackDeliverer(dc *DeliveryConfig) *SlackDeliverer {
	return &SlackDeliverer{
		DeliveryConfig: dc,
		api:            slack.New(dc.Token),
	}
}

func (sd *SlackDeliverer) Deliver(ctx context.Context, d *Delivery) error {
	logger := log.LoggerFromContext(ctx).With(slog.String("deliverer", string(SLACK_DELIVERY_TYPE)))
	info, err := os.Stat(d.Archive)
	if err != nil {
		return err
	}
	channel, err := sd.channelID(ctx)
	if err != nil {
		return err
	}
	logger.Debug(fmt.Sprintf("uploading %s to %s (%s)", d.Archive, sd.Channel, channel))
	file, err := sd.api.UploadFileV2Context(ctx, slack.UploadFileV2Parameters{
		File:           d.Archive,
		FileSize:       int(info.Size()),
		Filename:       d.FileName(),
		Title:          d.FileName(),
		InitialComment: d.Summary(),
		Channel:        channel,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s to slack: %w", d.Archive, err)
	}
	logger.Info(fmt.Sprintf("uploaded %s to %s as file %s", d.FileName(), sd.Channel, file.ID))
	return nil
}

// channelID resolves a "#name" channel to its id. Anything else is taken
// to be an id already.
func (sd *SlackDeliverer) channelID(ctx context.Context) (string, error) {
	name, ok := strings.CutPrefix(sd.Channel, "#")
	if !ok {
		return sd.Channel, nil
	}
	params := &slack.GetConversationsParameters{
		ExcludeArchived: true,
		Limit:           200,
		Types:           []string{"public_channel", "private_channel"},
	}
	for {
		channels, cursor, err := sd.api.GetConversationsContext(ctx, params)
		if err != nil {
			return "", fmt.Errorf("failed to list slack channels: %w", err)
		}
		for _, c := range channels {
			if c.Name == name {
				return c.ID, nil
			}
		}
		if cursor == "" {
			return "", fmt.Errorf("slack channel %s not found", sd.Channel)
		}
		params.Cursor = cursor
	}
}
