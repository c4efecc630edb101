package clients

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/talktera/talktera-scheduling-service/internal/domain"
)

// CalendarAPI talks to the external calendar provider's REST API. One client
// is built at startup and shared across requests.
type CalendarAPI struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewCalendarAPI(baseURL, apiKey string) *CalendarAPI {
	return &CalendarAPI{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type createEventRequest struct {
	OrganizerEmail string    `json:"organizerEmail"`
	AttendeeEmail  string    `json:"attendeeEmail"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	Conferencing   bool      `json:"conferencing"`
}

type eventResponse struct {
	Id string `json:"id"`
}

func (c *CalendarAPI) CreateEvent(ctx context.Context, organizerEmail, attendeeEmail string, start, end time.Time, conferencing bool) (string, error) {
	body, err := json.Marshal(createEventRequest{
		OrganizerEmail: organizerEmail,
		AttendeeEmail:  attendeeEmail,
		Start:          start,
		End:            end,
		Conferencing:   conferencing,
	})
	if err != nil {
		return "", err
	}
	resp, err := c.do(ctx, http.MethodPost, "/v1/events", body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var event eventResponse
	if err := json.NewDecoder(resp.Body).Decode(&event); err != nil {
		return "", &domain.DependencyError{Collaborator: "calendar", Err: err}
	}
	return event.Id, nil
}

func (c *CalendarAPI) UpdateEvent(ctx context.Context, eventId string, start, end time.Time) error {
	body, err := json.Marshal(map[string]time.Time{"start": start, "end": end})
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, http.MethodPatch, "/v1/events/"+eventId, body)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (c *CalendarAPI) DeleteEvent(ctx context.Context, eventId string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/v1/events/"+eventId, nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (c *CalendarAPI) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &domain.DependencyError{Collaborator: "calendar", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, &domain.DependencyError{
			Collaborator: "calendar",
			Err:          fmt.Errorf("%s %s returned %d", method, path, resp.StatusCode),
		}
	}
	return resp, nil
}
