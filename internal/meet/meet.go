package meet

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

// Link is a provisioned video consultation link.
type Link struct {
	MeetingId string
	URL       string
}

// Provisioner creates the meeting link attached to a booked appointment.
type Provisioner interface {
	CreateMeeting(ctx context.Context, startTime time.Time) (Link, error)
}

// LocalProvisioner builds a meet style link from a random id without
// contacting any external service.
type LocalProvisioner struct{}

func (LocalProvisioner) CreateMeeting(ctx context.Context, startTime time.Time) (Link, error) {
	meetingId := uuid.New().String()[:8]
	return Link{
		MeetingId: meetingId,
		URL:       fmt.Sprintf("https://meet.google.com/%s", meetingId),
	}, nil
}

type createMeetingResponse struct {
	MeetingId string `json:"meeting_id"`
	URL       string `json:"url"`
}

// HTTPProvisioner requests a meeting from a meeting bridge service. Any
// failure degrades to a locally generated link so booking never fails on the
// bridge being down.
type HTTPProvisioner struct {
	client *resty.Client
	local  LocalProvisioner
}

func NewHTTPProvisioner(baseURL string) *HTTPProvisioner {
	return &HTTPProvisioner{
		client: resty.New().SetBaseURL(baseURL),
	}
}

func (p *HTTPProvisioner) CreateMeeting(ctx context.Context, startTime time.Time) (Link, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	res, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{"start_time": startTime.UTC().Format(time.RFC3339)}).
		Post("/meetings")

	if err != nil {
		slog.Warn("meeting service unreachable, generating local link", "error", err)
		return p.local.CreateMeeting(ctx, startTime)
	}

	if !res.IsSuccess() {
		slog.Warn("meeting service returned error, generating local link", "status_code", res.StatusCode(), "body", res.String())
		return p.local.CreateMeeting(ctx, startTime)
	}

	var meeting createMeetingResponse
	if err := json.Unmarshal(res.Body(), &meeting); err != nil {
		slog.Warn("error parsing meeting service response, generating local link", "error", err)
		return p.local.CreateMeeting(ctx, startTime)
	}

	if meeting.URL == "" {
		slog.Warn("meeting service returned no link, generating local link")
		return p.local.CreateMeeting(ctx, startTime)
	}

	return Link{MeetingId: meeting.MeetingId, URL: meeting.URL}, nil
}
