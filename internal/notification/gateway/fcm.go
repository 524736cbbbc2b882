package gateway

import (
	"context"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"unitedhelp/internal/notification"
	dErrors "unitedhelp/pkg/domain-errors"
)

// MulticastSender is the part of the Firebase messaging client the gateway uses.
type MulticastSender interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// FCMGateway delivers batches through Firebase Cloud Messaging.
type FCMGateway struct {
	sender MulticastSender
}

func NewFCMGateway(sender MulticastSender) *FCMGateway {
	return &FCMGateway{sender: sender}
}

// NewFCMClient builds a messaging client from a service account key file.
// An empty projectID is read from the credentials.
func NewFCMClient(ctx context.Context, credentialsFile, projectID string) (*messaging.Client, error) {
	var cfg *firebase.Config
	if projectID != "" {
		cfg = &firebase.Config{ProjectID: projectID}
	}
	app, err := firebase.NewApp(ctx, cfg, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "init firebase app")
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "init firebase messaging")
	}
	return client, nil
}

func (g *FCMGateway) Send(ctx context.Context, tokens []string, msg notification.Message) (notification.BatchResult, error) {
	resp, err := g.sender.SendEachForMulticast(ctx, &messaging.MulticastMessage{
		Tokens: tokens,
		Data:   msg.Data(),
		Notification: &messaging.Notification{
			Title:    msg.Title,
			Body:     msg.Body,
			ImageURL: msg.Image,
		},
	})
	if err != nil {
		return notification.BatchResult{}, dErrors.Wrap(err, dErrors.CodeExternalFailure, "fcm multicast failed")
	}
	if resp == nil {
		return notification.BatchResult{FailureCount: len(tokens)}, nil
	}
	return notification.BatchResult{SuccessCount: resp.SuccessCount, FailureCount: resp.FailureCount}, nil
}
