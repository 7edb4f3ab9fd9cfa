package client

import (
	"fmt"
)

// TripClient talks to the trips service HTTP API. Used by integration tests
// and by tooling that drives lifecycle transitions from outside the service.
type TripClient struct {
	httpClient *HttpClient
}

func NewTripClient(baseURL string) *TripClient {
	return &TripClient{
		httpClient: NewHttpClient(baseURL),
	}
}

func (c *TripClient) Create(userID string, body any) (*Response, error) {
	return c.httpClient.POSTWithHeaders("/api/v1/trips", body, map[string]string{
		"X-User-ID": userID,
	})
}

func (c *TripClient) GetByID(id string) (*Response, error) {
	return c.httpClient.GET("/api/v1/trips/" + id)
}

func (c *TripClient) GetAll(limit int, offset int64) (*Response, error) {
	path := fmt.Sprintf("/api/v1/trips?limit=%d&offset=%d", limit, offset)
	return c.httpClient.GET(path)
}

func (c *TripClient) Update(id string, userID string, body any) (*Response, error) {
	return c.httpClient.PATCHWithHeaders("/api/v1/trips/"+id, body, map[string]string{
		"X-User-ID": userID,
	})
}

func (c *TripClient) Publish(id string, userID string) (*Response, error) {
	return c.httpClient.POSTWithHeaders("/api/v1/trips/"+id+"/publish", nil, map[string]string{
		"X-User-ID": userID,
	})
}

func (c *TripClient) Cancel(id string, userID string) (*Response, error) {
	return c.httpClient.POSTWithHeaders("/api/v1/trips/"+id+"/cancel", nil, map[string]string{
		"X-User-ID": userID,
	})
}

func (c *TripClient) Join(id string, userID string) (*Response, error) {
	return c.httpClient.POSTWithHeaders("/api/v1/trips/"+id+"/join", nil, map[string]string{
		"X-User-ID": userID,
	})
}
