package client

import (
	"context"
	"net/url"
	"strconv"

	"github.com/codr1/ChargeEase/internal/models"
)

type Location struct {
	Latitude  float64
	Longitude float64
	Radius    float64
}

type SearchParams struct {
	Query          string
	Location       *Location
	ChargingSpeeds []string
	ConnectorTypes []string
	Amenities      []string
	HostTypes      []string
	Availability   *bool
	MinRating      *float64
	MinPrice       *float64
	MaxPrice       *float64
	Sort           string
	Page           int
	Limit          int
}

type SearchResult struct {
	Stations []models.ChargingStation `json:"stations"`
	Total    int                      `json:"total"`
	Page     int                      `json:"page"`
	Limit    int                      `json:"limit"`
	HasMore  bool                     `json:"hasMore"`
}

func (p SearchParams) values() url.Values {
	v := url.Values{}
	if p.Page > 0 {
		v.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		v.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Query != "" {
		v.Set("q", p.Query)
	}
	if p.Location != nil {
		v.Set("lat", formatFloat(p.Location.Latitude))
		v.Set("lng", formatFloat(p.Location.Longitude))
		if p.Location.Radius > 0 {
			v.Set("radius", formatFloat(p.Location.Radius))
		}
	}
	for key, list := range map[string][]string{
		"chargingSpeed": p.ChargingSpeeds,
		"connectorType": p.ConnectorTypes,
		"amenity":       p.Amenities,
		"hostType":      p.HostTypes,
	} {
		for _, item := range list {
			v.Add(key, item)
		}
	}
	if p.Availability != nil {
		v.Set("availability", strconv.FormatBool(*p.Availability))
	}
	if p.MinRating != nil {
		v.Set("rating", formatFloat(*p.MinRating))
	}
	if p.MinPrice != nil {
		v.Set("minPrice", formatFloat(*p.MinPrice))
	}
	if p.MaxPrice != nil {
		v.Set("maxPrice", formatFloat(*p.MaxPrice))
	}
	if p.Sort != "" {
		v.Set("sort", p.Sort)
	}
	return v
}

func (c *Client) SearchStations(ctx context.Context, params SearchParams) (SearchResult, error) {
	var result SearchResult
	_, err := c.get(ctx, "/stations", params.values(), &result)
	return result, err
}

func (c *Client) Station(ctx context.Context, id string) (models.ChargingStation, error) {
	var station models.ChargingStation
	_, err := c.get(ctx, "/stations/"+url.PathEscape(id), nil, &station)
	return station, err
}

func (c *Client) NearbyStations(ctx context.Context, lat, lng, radius float64) ([]models.ChargingStation, error) {
	v := url.Values{}
	v.Set("lat", formatFloat(lat))
	v.Set("lng", formatFloat(lng))
	if radius > 0 {
		v.Set("radius", formatFloat(radius))
	}
	var list []models.ChargingStation
	_, err := c.get(ctx, "/stations/nearby", v, &list)
	return list, err
}

func (c *Client) PopularStations(ctx context.Context) ([]models.ChargingStation, error) {
	var list []models.ChargingStation
	_, err := c.get(ctx, "/stations/popular", nil, &list)
	return list, err
}

func (c *Client) TopRatedStations(ctx context.Context) ([]models.ChargingStation, error) {
	var list []models.ChargingStation
	_, err := c.get(ctx, "/stations/top-rated", nil, &list)
	return list, err
}

func (c *Client) AddFavorite(ctx context.Context, stationID string) error {
	return c.post(ctx, "/stations/"+url.PathEscape(stationID)+"/favorite", nil, nil)
}

func (c *Client) RemoveFavorite(ctx context.Context, stationID string) error {
	return c.delete(ctx, "/stations/"+url.PathEscape(stationID)+"/favorite")
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
