package fcmclient

import (
	"context"
	"errors"
	"net/http"

	fcm "google.golang.org/api/fcm/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// ChannelID is the Android notification channel the app creates on start.
const ChannelID = "ecare_channel"

// ErrUnregistered means the device token is stale and should be forgotten.
var ErrUnregistered = errors.New("fcm: device token is no longer registered")

type PushInterface interface {
	Send(ctx context.Context, msg *Message) error
}

type Message struct {
	Token          string
	Title          string
	Body           string
	Type           string
	NotificationID string
}

// Data is the data payload the app reads to navigate on tap.
func (m *Message) Data() map[string]string {
	return map[string]string{
		"notification_type": m.Type,
		"notification_id":   m.NotificationID,
	}
}

type Client struct {
	svc       *fcm.Service
	projectID string
}

func InitFCMClient(ctx context.Context, projectID, credentialsFile string) (*Client, error) {
	if projectID == "" {
		return nil, errors.New("fcm project id is required")
	}

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	svc, err := fcm.NewService(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{svc: svc, projectID: projectID}, nil
}

func (c *Client) Send(ctx context.Context, msg *Message) error {
	req := &fcm.SendMessageRequest{
		Message: &fcm.Message{
			Token: msg.Token,
			Notification: &fcm.Notification{
				Title: msg.Title,
				Body:  msg.Body,
			},
			Data: msg.Data(),
			Android: &fcm.AndroidConfig{
				Priority: "HIGH",
				Notification: &fcm.AndroidNotification{
					ChannelId: ChannelID,
				},
			},
		},
	}

	_, err := c.svc.Projects.Messages.Send("projects/"+c.projectID, req).Context(ctx).Do()
	if err == nil {
		return nil
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
		return ErrUnregistered
	}
	return err
}
